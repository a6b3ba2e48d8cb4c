// Package completion adapts the three asynchronous completion protocols an
// intercepted operation may use:
//
//   - Callback: a function-typed argument (by default the last) is called
//     with the outcome. CallbackSwap locates it; InterceptCallback records
//     its arguments before forwarding.
//   - Promise: the operation returns a Thenable. Promise[T] is the provided
//     implementation; any type satisfying Settler can be replayed.
//   - Return: anything else. A ReturnSerializer records the results and may
//     finish recording later through its done callback, which is how
//     producers such as an io.Reader are captured.
//
// Errors lose their type and stack when serialized. Describe records the
// message and stack beside the serialized value, and Rehydrate rebuilds a
// ReinstantiatedError from them on replay.
package completion
