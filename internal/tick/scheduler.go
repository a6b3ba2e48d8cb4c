package tick

// Scheduler runs fn at some point after Schedule returns.
//
// Implementations must not run fn synchronously inside Schedule.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) {
	f(fn)
}

// Goroutine schedules each task on its own goroutine.
var Goroutine Scheduler = SchedulerFunc(func(fn func()) {
	go fn()
})
