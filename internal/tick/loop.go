package tick

import (
	"context"
	"sync"
)

// Loop is a thread-safe FIFO task queue that runs tasks only when driven.
//
// The queue is unbounded so that a task may schedule further tasks while it
// runs; those run after every task already queued. Schedule may be called
// from any goroutine. Tasks run on the goroutine that calls RunUntilIdle or
// Run.
//
// The zero value is not usable; create loops with NewLoop.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Schedule appends fn to the queue. Tasks scheduled after Close are
// dropped.
func (l *Loop) Schedule(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.tasks = append(l.tasks, fn)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// next removes and returns the front task.
func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}

	fn := l.tasks[0]

	// Nil out the slot so the closure and its captures can be collected.
	l.tasks[0] = nil

	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}

	return fn, true
}

// RunUntilIdle runs queued tasks, including those they schedule, until the
// queue is empty. It returns the number of tasks run.
func (l *Loop) RunUntilIdle() int {
	n := 0
	for {
		fn, ok := l.next()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Run runs tasks as they arrive until ctx is done or the loop is closed and
// drained. It returns ctx.Err() on cancellation and nil after Close.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunUntilIdle()

		l.mu.Lock()
		done := l.closed && len(l.tasks) == 0
		l.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
		}
	}
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Close stops accepting tasks and wakes Run. Tasks already queued still run.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.closed = true
	close(l.signal)
}
