package tick

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_FIFO(t *testing.T) {
	l := NewLoop()

	var order []int
	for i := 1; i <= 3; i++ {
		l.Schedule(func() { order = append(order, i) })
	}
	require.Equal(t, 3, l.Len())

	n := l.RunUntilIdle()
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, l.Len())
}

func TestLoop_ScheduleIsNeverSynchronous(t *testing.T) {
	l := NewLoop()

	ran := false
	l.Schedule(func() { ran = true })
	assert.False(t, ran, "task must not run inside Schedule")

	l.RunUntilIdle()
	assert.True(t, ran)
}

func TestLoop_NestedTasksRunAfterQueuedOnes(t *testing.T) {
	l := NewLoop()

	var order []string
	l.Schedule(func() {
		order = append(order, "a")
		l.Schedule(func() { order = append(order, "c") })
	})
	l.Schedule(func() { order = append(order, "b") })

	assert.Equal(t, 3, l.RunUntilIdle())
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestLoop_ScheduleAfterCloseIsDropped(t *testing.T) {
	l := NewLoop()
	l.Close()
	l.Close() // idempotent

	l.Schedule(func() { t.Fatal("task scheduled after Close must not run") })
	assert.Equal(t, 0, l.RunUntilIdle())
}

func TestLoop_RunStopsOnContextCancel(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestLoop_RunDrainsThenReturnsAfterClose(t *testing.T) {
	l := NewLoop()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		l.Schedule(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	l.Close()

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 10, count)
}

func TestLoop_ConcurrentSchedule(t *testing.T) {
	l := NewLoop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Schedule(func() {})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, l.Len())
	assert.Equal(t, 50, l.RunUntilIdle())
}

func TestGoroutine_RunsAsynchronously(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})

	Goroutine.Schedule(func() {
		close(started)
		<-release
		close(finished)
	})

	// Schedule returned while the task is still blocked.
	<-started
	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestSchedulerFunc(t *testing.T) {
	var got []func()
	s := SchedulerFunc(func(fn func()) { got = append(got, fn) })

	s.Schedule(func() {})
	assert.Len(t, got, 1)
}
