// Package safejson renders arbitrary Go values as JSON text without ever
// failing.
//
// It is used for everything easyfix persists: call arguments, callback
// arguments, promise settlements and return values. Those values come from
// code under test, so the encoder cannot assume they are acyclic, that their
// marshalers behave, or that they contain only JSON-friendly kinds.
//
// Encoding follows encoding/json conventions where it can:
//   - struct fields honour `json` tags (name, omitempty, "-")
//   - json.Marshaler and encoding.TextMarshaler are used when implemented
//   - map keys are sorted
//   - []byte becomes a base64 string
//
// and JSON.stringify conventions where encoding/json would return an error:
//   - functions, channels and unsafe pointers are omitted from objects and
//     become null in arrays
//   - NaN and infinities become null
//   - a value that repeats one of its own ancestors is replaced through the
//     cycle policy ("[Circular ~]" for the root, "[Circular ~.a.b]" otherwise)
//   - a marshaler that fails or panics is replaced by a marker string
//
// HTML characters are never escaped. With Options.NormalizeStrings every
// string and object key is NFC-normalized first, so text that differs only in
// Unicode normalization form serializes identically.
package safejson
