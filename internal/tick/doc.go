// Package tick schedules work for "the next tick".
//
// Replay never delivers a result on the caller's stack: callbacks are
// invoked and promises settled through a Scheduler, after the wrapped call
// has returned. Two schedulers are provided:
//
//   - Goroutine runs every task on a fresh goroutine. It is the default.
//   - Loop is a deterministic FIFO event loop driven by the test itself,
//     for tests that assert ordering between completions.
package tick
