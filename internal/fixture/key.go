package fixture

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// digestLen is the number of hex digits of the argument digest kept in a key.
const digestLen = 12

// DeriveKey computes the fixture key for serialized call arguments.
// Format: prefix + "-" + first 12 hex digits of SHA256(serializedArgs)
//
// The key is stable across processes: identical serialized arguments under
// the same prefix always map to the same fixture.
func DeriveKey(serializedArgs, prefix string) string {
	sum := sha256.Sum256([]byte(serializedArgs))
	return prefix + "-" + hex.EncodeToString(sum[:])[:digestLen]
}

// FixturePath returns <dir>/<key>.json.
func FixturePath(dir, key string) string {
	return filepath.Join(dir, key+".json")
}

// ParseKey splits a fixture file name of the form <prefix>-<digest>.json.
// ok is false for names not produced by FixturePath, such as explicit
// path overrides.
func ParseKey(name string) (prefix, digest string, ok bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".json")
	i := strings.LastIndexByte(base, '-')
	if i < 0 || len(base)-i-1 != digestLen {
		return "", "", false
	}
	digest = base[i+1:]
	if _, err := hex.DecodeString(digest); err != nil || strings.ToLower(digest) != digest {
		return "", "", false
	}
	return base[:i], digest, true
}
