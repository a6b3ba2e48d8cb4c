// Package intercept replaces a function value with a recording or replaying
// stand-in.
//
// An interception is bound once, by Wrap or WrapMethod, and its mode never
// changes afterwards:
//
//   - live: the real operation runs and nothing is recorded.
//   - capture: the real operation runs; its arguments and outcome are written
//     to a fixture every time the outcome changes. The caller observes
//     exactly what the unwrapped operation would have produced.
//   - replay: the real operation never runs. The fixture for the call's
//     arguments is read and its outcome is synthesized on the next tick
//     (callbacks and promises) or returned directly (return values).
//
// A replay miss is a test-authoring error, not a runtime condition, so it is
// reported synchronously through Config.OnFailure, which panics by default.
//
// # Argument Keys
//
// A leading context.Context parameter is not part of the call's arguments:
// it does not contribute to the fixture key, and it parents the call's
// trace span.
package intercept
