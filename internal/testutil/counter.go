package testutil

import (
	"sync"
)

// StateArg is the argument of the counter operations.
type StateArg struct {
	Val  int       `json:"val"`
	Circ *StateArg `json:"circ,omitempty"`
}

// BoomError carries an extra exported property, which survives
// serialization while the message does not.
type BoomError struct {
	Msg   string `json:"-"`
	Extra string `json:"extra"`
}

func (e *BoomError) Error() string { return e.Msg }

// Counter is an asynchronous operation under test. Its operations are
// function-typed fields so they can be intercepted with WrapMethod.
//
// Thread-safety: state is guarded by an internal mutex; callbacks run on
// their own goroutine, never on the caller's stack.
type Counter struct {
	mu    sync.Mutex
	state int
	calls int

	// IncStateNextTick sets the state to arg.Val, then asynchronously
	// increments it and calls back with the new value.
	IncStateNextTick func(arg *StateArg, callback func(err error, state int))

	// IncStateWithLabel is IncStateNextTick with the callback in the
	// middle of the argument list.
	IncStateWithLabel func(arg *StateArg, callback func(err error, state int), label string)

	// FailNextTick sets the state to arg.Val and calls back with a
	// *BoomError.
	FailNextTick func(arg *StateArg, callback func(err error, state int))
}

// NewCounter creates a counter at state 0.
func NewCounter() *Counter {
	c := &Counter{}
	c.IncStateNextTick = c.incStateNextTick
	c.IncStateWithLabel = func(arg *StateArg, callback func(error, int), _ string) {
		c.incStateNextTick(arg, callback)
	}
	c.FailNextTick = func(arg *StateArg, callback func(error, int)) {
		c.Enter(arg.Val)
		go callback(&BoomError{Msg: "boom", Extra: "x"}, 0)
	}
	return c
}

func (c *Counter) incStateNextTick(arg *StateArg, callback func(error, int)) {
	c.Enter(arg.Val)
	go func() {
		c.mu.Lock()
		c.state++
		state := c.state
		c.mu.Unlock()
		callback(nil, state)
	}()
}

// Enter records a call of a real operation that sets the state to val.
// It is exported for operations defined outside this package.
func (c *Counter) Enter(val int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.state = val
}

// State returns the current state.
func (c *Counter) State() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Calls returns how many times the real operations ran.
func (c *Counter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset zeroes the state and call count.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = 0
	c.calls = 0
}
