// Package easyfix records and replays the outcomes of asynchronous calls.
//
// An operation is intercepted with Wrap (a function variable) or WrapMethod
// (an exported function-typed struct field). Depending on the mode, calls
// then pass through untouched (ModeLive), run for real while their outcome
// is written to a fixture file (ModeCapture), or never run at all and have
// their outcome synthesized from the fixture (ModeReplay).
//
// Three completion protocols are understood:
//   - callback: a function argument, the last one by default, receives the
//     result; see CallbackSwap for other positions
//   - promise: the operation returns a single Thenable such as *Promise[T]
//   - return: any other results, optionally through a ReturnSerializer for
//     values produced over time such as an io.Reader
//
// Fixtures live at <Directory>/<Prefix>-<digest>.json, where digest is the
// first 12 hex digits of the SHA-256 of the serialized call arguments. The
// mode defaults to the TEST_MODE environment variable, then the config file
// named by EASYFIX_CONFIG, then ModeReplay.
//
// A replayed call whose fixture is missing fails synchronously through
// Config.OnFailure, which panics by default. Recorded errors come back as
// *ReinstantiatedError values carrying the original message, stack and
// exported fields.
package easyfix
