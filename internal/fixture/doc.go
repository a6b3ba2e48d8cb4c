// Package fixture persists the observed inputs and outputs of intercepted
// calls as flat JSON files.
//
// A fixture lives at <directory>/<key>.json where the key is derived from the
// serialized call arguments:
//
//	key = prefix + "-" + hex(sha256(serializedArgs))[:12]
//
// # Record Shape
//
// Every record carries callArgs and exactly one outcome:
//   - callbackArgs, optionally with calledBackWithError
//   - returnedPromise with promiseResolutionArgs, or promiseRejectionArgs
//     plus rejectedWithError
//   - returnValue, optionally with returnValueAsyncCallbackArgs and
//     returnedWithError
//
// Field names are part of the on-disk format and must not change.
//
// # Reads and Writes
//
// Writes are pretty-printed with a trailing newline and overwrite any existing
// file. OSBackend writes atomically so a concurrent reader never observes a
// partial fixture.
//
// Reads go through the Mock File Cache first. Files are standardized with
// hujson before decoding, so fixtures edited by hand may carry comments and
// trailing commas. Decoded records are validated against an embedded CUE
// schema; anything that fails is reported as FIXTURE_CORRUPT.
package fixture
