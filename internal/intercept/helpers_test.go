package intercept_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/easyfix/internal/completion"
	"github.com/roach88/easyfix/internal/config"
	"github.com/roach88/easyfix/internal/fixture"
	"github.com/roach88/easyfix/internal/intercept"
	"github.com/roach88/easyfix/internal/testutil"
)

const fixtureDir = "fixtures"

// env bundles the store shared by a capture run and the replay run that
// follows it.
type env struct {
	backend  *fixture.MemBackend
	store    *fixture.Store
	mu       sync.Mutex
	failures []error
}

func newEnv(t *testing.T) *env {
	t.Helper()
	// Keep the process environment from leaking into the tests.
	t.Setenv(config.EnvMode, "")
	t.Setenv(config.EnvConfig, "")

	backend := &fixture.MemBackend{}
	return &env{
		backend: backend,
		store:   fixture.NewStore(fixture.WithBackend(backend), fixture.WithCache(fixture.NewCache())),
	}
}

func (e *env) config(mode config.Mode) intercept.Config {
	return intercept.Config{
		Mode:      mode,
		Directory: fixtureDir,
		Store:     e.store,
		OnFailure: e.onFailure,
	}
}

func (e *env) onFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = append(e.failures, err)
}

func (e *env) Failures() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.failures...)
}

// freshStore returns a store over the same files with an empty cache, as a
// later test process would see them.
func (e *env) freshStore() *fixture.Store {
	return fixture.NewStore(fixture.WithBackend(e.backend), fixture.WithCache(fixture.NewCache()))
}

type cbResult struct {
	err   error
	state int
}

func callback() (func(error, int), <-chan cbResult) {
	ch := make(chan cbResult, 1)
	return func(err error, state int) { ch <- cbResult{err: err, state: state} }, ch
}

func wait(t *testing.T, ch <-chan cbResult) cbResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not called")
		return cbResult{}
	}
}

func wrapCounter(t *testing.T, c *testutil.Counter, method string, cfg intercept.Config) *intercept.Handle {
	t.Helper()
	h, err := intercept.WrapMethod(c, method, cfg)
	require.NoError(t, err)
	t.Cleanup(h.Restore)
	return h
}

// promiser has promise-returning operations.
type promiser struct {
	counter *testutil.Counter

	RejectBoom func(ctx context.Context, arg *testutil.StateArg) *completion.Promise[int]
	Double     func(ctx context.Context, arg *testutil.StateArg) *completion.Promise[int]
}

func newPromiser() *promiser {
	p := &promiser{counter: testutil.NewCounter()}
	p.RejectBoom = func(_ context.Context, arg *testutil.StateArg) *completion.Promise[int] {
		p.counter.Enter(arg.Val)
		return completion.Rejected[int](&testutil.BoomError{Msg: "boom", Extra: "x"})
	}
	p.Double = func(_ context.Context, arg *testutil.StateArg) *completion.Promise[int] {
		p.counter.Enter(arg.Val)
		return completion.Async(func() (int, error) { return arg.Val * 2, nil })
	}
	return p
}

func awaitPromise[T any](t *testing.T, p *completion.Promise[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := p.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "promise did not settle")
	return v, err
}
