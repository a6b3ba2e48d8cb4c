package intercept_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/easyfix/internal/completion"
	"github.com/roach88/easyfix/internal/config"
	"github.com/roach88/easyfix/internal/fixture"
	"github.com/roach88/easyfix/internal/intercept"
	"github.com/roach88/easyfix/internal/testutil"
	"github.com/roach88/easyfix/internal/tick"
)

func TestReplayMissingFixtureReportsNotFound(t *testing.T) {
	e := newEnv(t)
	c := testutil.NewCounter()
	h := wrapCounter(t, c, "IncStateNextTick", e.config(config.ModeReplay))

	called := false
	c.IncStateNextTick(&testutil.StateArg{Val: 7}, func(error, int) { called = true })

	failures := e.Failures()
	require.Len(t, failures, 1)
	err := failures[0]
	assert.True(t, fixture.IsNotFound(err))

	path := h.FixturePath(&testutil.StateArg{Val: 7}, nil)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), "TEST_MODE=capture")
	assert.Contains(t, err.Error(), `[{"val":7},null]`)
	assert.False(t, called)
	assert.Equal(t, 0, c.Calls())
}

func TestReplayMissingFixturePanicsByDefault(t *testing.T) {
	e := newEnv(t)
	cfg := e.config(config.ModeReplay)
	cfg.OnFailure = nil

	c := testutil.NewCounter()
	wrapCounter(t, c, "IncStateNextTick", cfg)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		c.IncStateNextTick(&testutil.StateArg{Val: 7}, func(error, int) {})
	}()

	err, ok := recovered.(error)
	require.True(t, ok, "panic value is the error, got %#v", recovered)
	assert.True(t, fixture.IsNotFound(err))
}

func TestLiveModeNeitherReadsNorWrites(t *testing.T) {
	e := newEnv(t)
	c := testutil.NewCounter()
	h := wrapCounter(t, c, "IncStateNextTick", e.config(config.ModeLive))

	cb, ch := callback()
	c.IncStateNextTick(&testutil.StateArg{Val: 0}, cb)

	assert.Equal(t, 1, wait(t, ch).state)
	assert.Equal(t, 1, h.CallCount())
	assert.Empty(t, e.backend.Paths())
	assert.Equal(t, 0, e.store.Cache().Len())
}

func TestReplayDetectsKeyCollision(t *testing.T) {
	e := newEnv(t)
	c := testutil.NewCounter()
	h := wrapCounter(t, c, "IncStateNextTick", e.config(config.ModeReplay))

	// A fixture recorded for other arguments, sitting at this call's path.
	path := h.FixturePath(&testutil.StateArg{Val: 0}, nil)
	require.NoError(t, e.store.Write(path, &fixture.Record{
		CallArgs:     json.RawMessage(`[{"val":9},null]`),
		CallbackArgs: json.RawMessage(`[null,10]`),
	}))

	called := false
	c.IncStateNextTick(&testutil.StateArg{Val: 0}, func(error, int) { called = true })

	failures := e.Failures()
	require.Len(t, failures, 1)
	assert.True(t, fixture.IsCollision(failures[0]))
	var fe *fixture.Error
	require.ErrorAs(t, failures[0], &fe)
	assert.Equal(t, `[{"val":9},null]`, fe.Details["recorded"])
	assert.Equal(t, `[{"val":0},null]`, fe.Details["current"])
	assert.False(t, called)
}

func TestReplayExplicitPathSkipsCollisionCheck(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(fixtureDir, "shared.json")
	require.NoError(t, e.store.Write(path, &fixture.Record{
		CallArgs:     json.RawMessage(`[{"val":9},null]`),
		CallbackArgs: json.RawMessage(`[null,10]`),
	}))

	cfg := e.config(config.ModeReplay)
	cfg.ResponsePath = path
	c := testutil.NewCounter()
	h := wrapCounter(t, c, "IncStateNextTick", cfg)
	assert.Equal(t, path, h.FixturePath(&testutil.StateArg{Val: 0}, nil))

	for _, val := range []int{0, 1} {
		cb, ch := callback()
		c.IncStateNextTick(&testutil.StateArg{Val: val}, cb)
		assert.Equal(t, 10, wait(t, ch).state)
	}
	assert.Empty(t, e.Failures())
}

func TestReplayCorruptFixture(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"callArgs": [`},
		{"no outcome", `{"callArgs":[{"val":0},null]}`},
		{"mixed outcomes", `{"callArgs":[{"val":0},null],"callbackArgs":[null,1],"returnValue":[1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			c := testutil.NewCounter()
			h := wrapCounter(t, c, "IncStateNextTick", e.config(config.ModeReplay))
			path := h.FixturePath(&testutil.StateArg{Val: 0}, nil)
			require.NoError(t, e.backend.WriteFile(path, []byte(tt.data)))

			c.IncStateNextTick(&testutil.StateArg{Val: 0}, func(error, int) {})

			failures := e.Failures()
			require.Len(t, failures, 1)
			assert.True(t, fixture.IsCorrupt(failures[0]), "got %v", failures[0])
			assert.Contains(t, failures[0].Error(), path)
		})
	}
}

func TestReplayCallbackIsAsynchronous(t *testing.T) {
	e := newEnv(t)
	live := testutil.NewCounter()
	wrapCounter(t, live, "IncStateNextTick", e.config(config.ModeCapture))
	cb, ch := callback()
	live.IncStateNextTick(&testutil.StateArg{Val: 0}, cb)
	wait(t, ch)

	loop := tick.NewLoop()
	defer loop.Close()
	cfg := e.config(config.ModeReplay)
	cfg.Scheduler = loop

	replayed := testutil.NewCounter()
	wrapCounter(t, replayed, "IncStateNextTick", cfg)

	var got []int
	replayed.IncStateNextTick(&testutil.StateArg{Val: 0}, func(_ error, state int) {
		got = append(got, state)
	})
	assert.Empty(t, got, "callback must not run before the call returns")
	assert.Equal(t, 1, loop.Len())

	assert.Equal(t, 1, loop.RunUntilIdle())
	assert.Equal(t, []int{1}, got)
}

func TestReplayPromiseResolution(t *testing.T) {
	e := newEnv(t)

	live := newPromiser()
	h, err := intercept.WrapMethod(live, "Double", e.config(config.ModeCapture))
	require.NoError(t, err)
	defer h.Restore()
	v, err := awaitPromise(t, live.Double(context.Background(), &testutil.StateArg{Val: 3}))
	require.NoError(t, err)
	assert.Equal(t, 6, v)

	replayed := newPromiser()
	rh, err := intercept.WrapMethod(replayed, "Double", e.config(config.ModeReplay))
	require.NoError(t, err)
	defer rh.Restore()
	v, err = awaitPromise(t, replayed.Double(context.Background(), &testutil.StateArg{Val: 3}))
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	assert.Equal(t, 0, replayed.counter.Calls())
}

type thenableSource struct {
	counter *testutil.Counter

	Next func(arg *testutil.StateArg) completion.Thenable
}

func awaitThenable(t *testing.T, th completion.Thenable) (any, error) {
	t.Helper()
	type settled struct {
		value any
		err   error
	}
	ch := make(chan settled, 1)
	th.OnSettled(func(value any, err error) { ch <- settled{value, err} })
	select {
	case s := <-ch:
		return s.value, s.err
	case <-time.After(5 * time.Second):
		t.Fatal("thenable did not settle")
		return nil, nil
	}
}

func TestReplayPromiseBehindInterfaceResult(t *testing.T) {
	e := newEnv(t)
	newSource := func() *thenableSource {
		s := &thenableSource{counter: testutil.NewCounter()}
		s.Next = func(arg *testutil.StateArg) completion.Thenable {
			s.counter.Enter(arg.Val)
			return completion.Async(func() (int, error) { return arg.Val + 1, nil })
		}
		return s
	}

	live := newSource()
	h, err := intercept.WrapMethod(live, "Next", e.config(config.ModeCapture))
	require.NoError(t, err)
	defer h.Restore()
	v, err := awaitThenable(t, live.Next(&testutil.StateArg{Val: 0}))
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	replayed := newSource()
	rh, err := intercept.WrapMethod(replayed, "Next", e.config(config.ModeReplay))
	require.NoError(t, err)
	defer rh.Restore()
	th := replayed.Next(&testutil.StateArg{Val: 0})
	require.IsType(t, &completion.Promise[any]{}, th)
	v, err = awaitThenable(t, th)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	assert.Equal(t, 0, replayed.counter.Calls())
	assert.Empty(t, e.Failures())
}

func TestReplayAmbiguousPromiseRejects(t *testing.T) {
	e := newEnv(t)
	p := newPromiser()
	h, err := intercept.WrapMethod(p, "RejectBoom", e.config(config.ModeReplay))
	require.NoError(t, err)
	defer h.Restore()

	path := h.FixturePath(context.Background(), &testutil.StateArg{Val: 0})
	require.NoError(t, e.store.Write(path, &fixture.Record{
		CallArgs:              json.RawMessage(`[{"val":0}]`),
		ReturnedPromise:       true,
		PromiseResolutionArgs: json.RawMessage(`[1]`),
		PromiseRejectionArgs:  json.RawMessage(`[{}]`),
	}))

	_, err = awaitPromise(t, p.RejectBoom(context.Background(), &testutil.StateArg{Val: 0}))
	require.Error(t, err)
	assert.True(t, fixture.IsAmbiguous(err))
	assert.Contains(t, err.Error(), path)
	assert.Empty(t, e.Failures(), "ambiguity is reported through the promise")
}

func TestReplayUsesCache(t *testing.T) {
	e := newEnv(t)
	live := testutil.NewCounter()
	h := wrapCounter(t, live, "IncStateNextTick", e.config(config.ModeCapture))
	cb, ch := callback()
	live.IncStateNextTick(&testutil.StateArg{Val: 0}, cb)
	wait(t, ch)
	path := h.FixturePath(&testutil.StateArg{Val: 0}, nil)

	replayed := testutil.NewCounter()
	wrapCounter(t, replayed, "IncStateNextTick", e.config(config.ModeReplay))
	for range 3 {
		cb, ch := callback()
		replayed.IncStateNextTick(&testutil.StateArg{Val: 0}, cb)
		assert.Equal(t, 1, wait(t, ch).state)
	}
	assert.Equal(t, 0, e.backend.Reads(path), "captured fixtures are served from the cache")
}

func TestReplayReadErrorIsPassedThrough(t *testing.T) {
	e := newEnv(t)
	ioErr := errors.New("disk on fire")
	cfg := e.config(config.ModeReplay)
	cfg.Store = fixture.NewStore(
		fixture.WithBackend(failingBackend{err: ioErr}),
		fixture.WithCache(fixture.NewCache()))

	c := testutil.NewCounter()
	wrapCounter(t, c, "IncStateNextTick", cfg)
	c.IncStateNextTick(&testutil.StateArg{Val: 0}, func(error, int) {})

	failures := e.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ioErr)
	assert.False(t, fixture.IsNotFound(failures[0]))
}

type failingBackend struct {
	err error
}

func (b failingBackend) ReadFile(string) ([]byte, error) { return nil, b.err }

func (b failingBackend) WriteFile(string, []byte) error { return b.err }
