package easyfix

import (
	"github.com/roach88/easyfix/internal/completion"
	"github.com/roach88/easyfix/internal/config"
	"github.com/roach88/easyfix/internal/fixture"
	"github.com/roach88/easyfix/internal/intercept"
	"github.com/roach88/easyfix/internal/safejson"
	"github.com/roach88/easyfix/internal/tick"
)

// Interception.
type (
	// Config configures one interception. Every field is optional.
	Config = intercept.Config

	// Resolved is a Config with every default applied.
	Resolved = intercept.Resolved

	// Handle controls one interception.
	Handle = intercept.Handle

	// Mode selects what an intercepted operation does.
	Mode = config.Mode
)

const (
	ModeLive    = config.ModeLive
	ModeCapture = config.ModeCapture
	ModeReplay  = config.ModeReplay
)

// Environment variables read at wrap time.
const (
	EnvMode   = config.EnvMode
	EnvConfig = config.EnvConfig
)

// Wrap intercepts the function stored in *target. name identifies the
// operation and is the default fixture prefix.
func Wrap[F any](target *F, name string, cfg Config) (*Handle, error) {
	return intercept.Wrap(target, name, cfg)
}

// WrapMethod intercepts the exported function-typed field method of the
// struct obj points to.
func WrapMethod(obj any, method string, cfg Config) (*Handle, error) {
	return intercept.WrapMethod(obj, method, cfg)
}

// Completion protocols.
type (
	Promise[T any] = completion.Promise[T]
	Thenable       = completion.Thenable
	Settler        = completion.Settler

	CallbackSwap       = completion.CallbackSwap
	Serializer         = completion.Serializer
	Deserializer       = completion.Deserializer
	ReturnSerializer   = completion.ReturnSerializer
	ReturnDeserializer = completion.ReturnDeserializer
	ReturnFixture      = completion.ReturnFixture

	ReinstantiatedError = completion.ReinstantiatedError
)

// ReinstantiatedMarker is appended to the message of replayed errors.
const ReinstantiatedMarker = completion.ReinstantiatedMarker

// NewPromise returns a pending promise.
func NewPromise[T any]() *Promise[T] { return completion.NewPromise[T]() }

// ResolvedPromise returns a promise resolved with v.
func ResolvedPromise[T any](v T) *Promise[T] { return completion.Resolved(v) }

// RejectedPromise returns a promise rejected with err.
func RejectedPromise[T any](err error) *Promise[T] { return completion.Rejected[T](err) }

// Async runs fn on a new goroutine and settles the returned promise with
// its results.
func Async[T any](fn func() (T, error)) *Promise[T] { return completion.Async(fn) }

var (
	// LastArgument treats the last function argument as the callback.
	LastArgument CallbackSwap = completion.LastArgument

	// SafeSerializer records values as cycle-safe JSON text.
	SafeSerializer Serializer = completion.SafeSerializer

	// ReaderSerializer and ReaderDeserializer record an io.Reader returned
	// as the first result by the text read from it.
	ReaderSerializer   ReturnSerializer   = completion.ReaderSerializer
	ReaderDeserializer ReturnDeserializer = completion.ReaderDeserializer
)

// ArgumentAt treats the function argument at index i as the callback.
// Negative indexes count from the end.
func ArgumentAt(i int) CallbackSwap { return completion.ArgumentAt(i) }

// Fixtures.
type (
	Record          = fixture.Record
	ErrorDescriptor = fixture.ErrorDescriptor
	Store           = fixture.Store
	StoreOption     = fixture.Option
	Backend         = fixture.Backend
	OSBackend       = fixture.OSBackend
	MemBackend      = fixture.MemBackend
	Cache           = fixture.Cache
	TraceLog        = fixture.TraceLog

	// Error is the error type of fixture failures; Code tells them apart.
	Error     = fixture.Error
	ErrorCode = fixture.ErrorCode
)

const (
	ErrCodeNotFound  = fixture.ErrCodeNotFound
	ErrCodeCorrupt   = fixture.ErrCodeCorrupt
	ErrCodeCollision = fixture.ErrCodeCollision
	ErrCodeAmbiguous = fixture.ErrCodeAmbiguous
)

var (
	NewStore    = fixture.NewStore
	WithBackend = fixture.WithBackend
	WithCache   = fixture.WithCache
	WithLogger  = fixture.WithLogger
	NewCache    = fixture.NewCache
	SharedCache = fixture.SharedCache
	DeriveKey   = fixture.DeriveKey
	FixturePath = fixture.FixturePath

	IsNotFound  = fixture.IsNotFound
	IsCorrupt   = fixture.IsCorrupt
	IsCollision = fixture.IsCollision
	IsAmbiguous = fixture.IsAmbiguous
)

// ResetCache empties the process-wide fixture cache.
func ResetCache() { fixture.SharedCache().Reset() }

// Scheduling.
type (
	// Scheduler runs replayed callbacks and settlements after the
	// intercepted call has returned.
	Scheduler = tick.Scheduler

	// Loop is a Scheduler that runs tasks only when driven, for tests that
	// need deterministic ordering.
	Loop = tick.Loop
)

// NewLoop creates an empty loop.
func NewLoop() *Loop { return tick.NewLoop() }

// Stringify renders v as JSON text without ever failing. Cycles are
// replaced by "[Circular ~...]" markers.
func Stringify(v any, indent string) string {
	return safejson.Stringify(v, nil, indent, nil)
}
