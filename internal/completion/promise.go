package completion

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Thenable is a value that exposes promise-like chaining. A wrapped operation
// whose single result implements Thenable is handled by the promise protocol.
type Thenable interface {
	// OnSettled registers fn to run once the value settles. err is non-nil
	// for a rejection.
	OnSettled(fn func(value any, err error))
}

// Settler is a Thenable that can be settled from outside. Capture and replay
// create fresh zero values of the operation's declared result type and
// settle them, so that type must be a pointer to a struct implementing
// Settler with a usable zero value.
type Settler interface {
	Thenable

	// Settle resolves with value, or rejects with err when err is non-nil.
	// It fails when value does not fit ValueType.
	Settle(value any, err error) error

	// ValueType is the type of a resolution value.
	ValueType() reflect.Type
}

// Promise is a single-assignment future. The zero value is an unsettled
// promise ready for use.
//
// Thread-safety: all methods are safe for concurrent use. The first
// settlement wins; later ones are ignored.
type Promise[T any] struct {
	mu       sync.Mutex
	settled  bool
	value    T
	err      error
	done     chan struct{}
	handlers []func(T, error)
}

// NewPromise returns an unsettled promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{}
}

// Resolved returns a promise already resolved with v.
func Resolved[T any](v T) *Promise[T] {
	p := &Promise[T]{}
	p.Resolve(v)
	return p
}

// Rejected returns a promise already rejected with err.
func Rejected[T any](err error) *Promise[T] {
	p := &Promise[T]{}
	p.Reject(err)
	return p
}

// Async runs fn on a new goroutine and settles the returned promise with
// its results.
func Async[T any](fn func() (T, error)) *Promise[T] {
	p := &Promise[T]{}
	go func() {
		v, err := fn()
		p.settle(v, err)
	}()
	return p
}

// Resolve fulfils the promise with v. It reports whether this call settled
// the promise.
func (p *Promise[T]) Resolve(v T) bool {
	return p.settle(v, nil)
}

// Reject rejects the promise with err. A nil err is replaced by a generic
// rejection error so that the promise still counts as rejected.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = fmt.Errorf("promise rejected with nil error")
	}
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.value = v
	p.err = err
	if p.done == nil {
		p.done = make(chan struct{})
	}
	close(p.done)
	handlers := p.handlers
	p.handlers = nil
	p.mu.Unlock()

	for _, fn := range handlers {
		fn(v, err)
	}
	return true
}

// Done returns a channel closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		p.done = make(chan struct{})
	}
	return p.done
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.Done():
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then registers fn to run with the settlement. Handlers registered before
// settlement run, in registration order, on the goroutine that settles the
// promise; a handler registered afterwards runs immediately on the caller's
// goroutine.
func (p *Promise[T]) Then(fn func(value T, err error)) {
	p.mu.Lock()
	if !p.settled {
		p.handlers = append(p.handlers, fn)
		p.mu.Unlock()
		return
	}
	v, err := p.value, p.err
	p.mu.Unlock()
	fn(v, err)
}

// OnSettled implements Thenable.
func (p *Promise[T]) OnSettled(fn func(value any, err error)) {
	p.Then(func(v T, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(v, nil)
	})
}

// Settle implements Settler. A nil value resolves with the zero T.
func (p *Promise[T]) Settle(value any, err error) error {
	if err != nil {
		p.Reject(err)
		return nil
	}
	if value == nil {
		var zero T
		p.Resolve(zero)
		return nil
	}
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("cannot resolve %s with %T", p.ValueType(), value)
	}
	p.Resolve(v)
	return nil
}

// ValueType implements Settler.
func (p *Promise[T]) ValueType() reflect.Type {
	return reflect.TypeFor[T]()
}

var (
	thenableType = reflect.TypeFor[Thenable]()
	settlerType  = reflect.TypeFor[Settler]()
)

// IsThenableType reports whether values of type t expose promise-like
// chaining.
func IsThenableType(t reflect.Type) bool {
	return t != nil && t.Implements(thenableType)
}

// NewSettler returns a fresh, unsettled value of t, which must be a pointer
// to a struct implementing Settler.
func NewSettler(t reflect.Type) (Settler, error) {
	if t == nil || t.Kind() != reflect.Pointer || !t.Implements(settlerType) {
		return nil, fmt.Errorf("result type %v cannot be settled: want a pointer type implementing completion.Settler", t)
	}
	return reflect.New(t.Elem()).Interface().(Settler), nil
}
