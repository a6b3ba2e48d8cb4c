package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/easyfix/internal/fixture"
)

// FixtureInfo describes one fixture file found on disk.
type FixtureInfo struct {
	Path    string          `json:"path"`
	Prefix  string          `json:"prefix,omitempty"`
	Digest  string          `json:"digest,omitempty"`
	Outcome fixture.Outcome `json:"outcome,omitempty"`
	Size    int64           `json:"size"`

	// Problem is set when the fixture cannot be replayed.
	Problem *Problem `json:"problem,omitempty"`

	Record *fixture.Record `json:"-"`
}

// Problem is a verification finding for one fixture.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LoadResult contains the fixtures found under a directory.
type LoadResult struct {
	Dir      string        `json:"dir"`
	Fixtures []FixtureInfo `json:"fixtures"`
}

// Problems returns the fixtures that have a problem.
func (r *LoadResult) Problems() []FixtureInfo {
	var out []FixtureInfo
	for _, f := range r.Fixtures {
		if f.Problem != nil {
			out = append(out, f)
		}
	}
	return out
}

// LoadError represents an error that occurred while scanning fixtures.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadFixtures reads and checks every *.json file under dir. With a
// non-empty prefix only fixtures whose key has that prefix are returned.
// Fixtures are sorted by path.
func LoadFixtures(dir, prefix string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("fixture directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing fixture directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	paths, err := FindFixtureFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}

	result := &LoadResult{Dir: dir}
	for _, path := range paths {
		fi := LoadFixture(path)
		if prefix != "" && fi.Prefix != prefix {
			continue
		}
		result.Fixtures = append(result.Fixtures, fi)
	}
	return result, nil
}

// FindFixtureFiles walks dir and returns all .json file paths, sorted.
func FindFixtureFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".json" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// LoadFixture reads and checks a single fixture file. Problems are reported
// in the result rather than as an error.
func LoadFixture(path string) FixtureInfo {
	fi := FixtureInfo{Path: path}
	fi.Prefix, fi.Digest, _ = fixture.ParseKey(path)

	data, err := fixture.OSBackend{}.ReadFile(path)
	if err != nil {
		code := ErrCodeGeneric
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		fi.Problem = &Problem{Code: code, Message: err.Error()}
		return fi
	}
	fi.Size = int64(len(data))

	rec, err := fixture.Parse(path, data)
	if err != nil {
		fi.Problem = problemFor(err)
		return fi
	}
	fi.Record = rec
	fi.Outcome, _ = rec.Outcome()

	if fi.Outcome == fixture.OutcomePromise {
		if _, _, err := rec.Settlement(); err != nil {
			fi.Problem = problemFor(err)
			return fi
		}
	}

	if fi.Digest != "" {
		if want := fixture.DeriveKey(compactJSON(rec.CallArgs), fi.Prefix); want != fi.Prefix+"-"+fi.Digest {
			fi.Problem = &Problem{
				Code:    ErrCodeKeyMismatch,
				Message: fmt.Sprintf("callArgs hash to %s; the fixture will never be replayed", want),
			}
		}
	}
	return fi
}

func problemFor(err error) *Problem {
	var fe *fixture.Error
	if errors.As(err, &fe) {
		return &Problem{Code: string(fe.Code), Message: fe.Message}
	}
	return &Problem{Code: ErrCodeGeneric, Message: err.Error()}
}

func compactJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}
