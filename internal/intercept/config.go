package intercept

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/easyfix/internal/completion"
	"github.com/roach88/easyfix/internal/config"
	"github.com/roach88/easyfix/internal/fixture"
	"github.com/roach88/easyfix/internal/tick"
)

// Config is the caller-supplied configuration of an interception. Every
// field is optional.
type Config struct {
	// Directory is the base fixture directory. Defaults to the config file's
	// directory, else "test/data".
	Directory string

	// Prefix namespaces fixture keys. Defaults to the operation name.
	Prefix string

	// Mode selects live, capture or replay. Defaults to TEST_MODE, then the
	// config file, then replay.
	Mode config.Mode

	// Path, when set, is used for every call instead of a derived path.
	// ResponsePath is accepted as an alias.
	Path         string
	ResponsePath string

	// LogPath enables the trace log.
	LogPath string

	// ArgumentSerializer maps call arguments to their recorded form.
	ArgumentSerializer completion.Serializer

	// ArgumentDeserializer maps recorded call arguments back to a JSON
	// array. It is used when checking replayed fixtures for key collisions.
	ArgumentDeserializer completion.Deserializer

	// ResponseSerializer maps callback arguments and promise settlements to
	// their recorded form.
	ResponseSerializer completion.Serializer

	// ResponseDeserializer maps recorded responses back to a JSON array.
	ResponseDeserializer completion.Deserializer

	// ReturnValueSerializer records results of the return protocol.
	ReturnValueSerializer completion.ReturnSerializer

	// ReturnValueDeserializer rebuilds results of the return protocol.
	ReturnValueDeserializer completion.ReturnDeserializer

	// DisableErrorReinstantiation replays recorded errors as plain
	// errors.New values instead of ReinstantiatedError.
	DisableErrorReinstantiation bool

	// CallbackSwap locates the callback argument. Defaults to
	// completion.LastArgument.
	CallbackSwap completion.CallbackSwap

	// Scheduler delivers replayed callbacks and settlements. Defaults to
	// tick.Goroutine.
	Scheduler tick.Scheduler

	// Store persists fixtures. Defaults to the filesystem and the shared
	// Mock File Cache.
	Store *fixture.Store

	// Logger receives per-call debug logs. Defaults to slog.Default().
	Logger *slog.Logger

	// OnFailure receives synchronous failures: replay misses, corrupt
	// fixtures and capture write errors. Defaults to panicking with the
	// error. When it returns, the call returns zero results.
	OnFailure func(err error)

	// TracerProvider creates the per-call spans. Defaults to the global
	// provider.
	TracerProvider trace.TracerProvider
}

// Resolved is a Config with every default applied. It does not change for
// the lifetime of the interception.
type Resolved struct {
	Name          string
	Directory     string
	Prefix        string
	Mode          config.Mode
	Path          string
	LogPath       string
	Reinstantiate bool

	ArgumentSerializer      completion.Serializer
	ArgumentDeserializer    completion.Deserializer
	ResponseSerializer      completion.Serializer
	ResponseDeserializer    completion.Deserializer
	ReturnValueSerializer   completion.ReturnSerializer
	ReturnValueDeserializer completion.ReturnDeserializer
	CallbackSwap            completion.CallbackSwap

	Scheduler      tick.Scheduler
	Store          *fixture.Store
	Logger         *slog.Logger
	OnFailure      func(err error)
	TracerProvider trace.TracerProvider
}

// Resolve applies defaults for the operation called name. env supplies the
// process-level defaults, usually config.FromEnv().
func (c Config) Resolve(name string, env *config.File) (Resolved, error) {
	r := Resolved{
		Name:                    name,
		Directory:               firstNonEmpty(c.Directory, env.Directory, config.DefaultDirectory),
		Prefix:                  firstNonEmpty(c.Prefix, name),
		Path:                    firstNonEmpty(c.Path, c.ResponsePath),
		LogPath:                 firstNonEmpty(c.LogPath, env.LogPath),
		Reinstantiate:           !c.DisableErrorReinstantiation && !env.DisableErrorReinstantiation,
		ArgumentSerializer:      c.ArgumentSerializer,
		ArgumentDeserializer:    c.ArgumentDeserializer,
		ResponseSerializer:      c.ResponseSerializer,
		ResponseDeserializer:    c.ResponseDeserializer,
		ReturnValueSerializer:   c.ReturnValueSerializer,
		ReturnValueDeserializer: c.ReturnValueDeserializer,
		CallbackSwap:            c.CallbackSwap,
		Scheduler:               c.Scheduler,
		Logger:                  c.Logger,
		OnFailure:               c.OnFailure,
		TracerProvider:          c.TracerProvider,
	}

	mode := c.Mode
	if mode == "" {
		mode = env.Mode
	}
	if mode == "" {
		mode = config.DefaultMode
	}
	m, err := config.ParseMode(string(mode))
	if err != nil {
		return Resolved{}, err
	}
	r.Mode = m

	if r.ArgumentSerializer == nil {
		r.ArgumentSerializer = completion.Identity
	}
	if r.ArgumentDeserializer == nil {
		r.ArgumentDeserializer = defaultDeserializer(c.ArgumentSerializer != nil)
	}
	if r.ResponseSerializer == nil {
		r.ResponseSerializer = completion.Identity
	}
	if r.ResponseDeserializer == nil {
		r.ResponseDeserializer = defaultDeserializer(c.ResponseSerializer != nil)
	}
	if r.ReturnValueSerializer == nil {
		r.ReturnValueSerializer = completion.DefaultReturnSerializer
	}
	if r.ReturnValueDeserializer == nil {
		if c.ReturnValueSerializer != nil {
			r.ReturnValueDeserializer = parseThenDecode
		} else {
			r.ReturnValueDeserializer = completion.DefaultReturnDeserializer
		}
	}
	if r.CallbackSwap == nil {
		r.CallbackSwap = completion.LastArgument
	}
	if r.Scheduler == nil {
		r.Scheduler = tick.Goroutine
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.OnFailure == nil {
		r.OnFailure = func(err error) { panic(err) }
	}
	if r.TracerProvider == nil {
		r.TracerProvider = otel.GetTracerProvider()
	}

	r.Store = c.Store
	if r.Store == nil {
		r.Store = fixture.NewStore(fixture.WithLogger(r.Logger))
	}
	if r.LogPath != "" {
		r.Store = r.Store.With(fixture.WithTraceLog(fixture.NewTraceLog(r.LogPath, r.Logger)))
	}

	return r, nil
}

// defaultDeserializer parses recorded JSON text when a custom serializer
// produced it, and is the identity otherwise.
func defaultDeserializer(customSerializer bool) completion.Deserializer {
	if customSerializer {
		return completion.ParseRecordedJSON
	}
	return completion.IdentityDeserializer
}

func parseThenDecode(f completion.ReturnFixture) ([]any, error) {
	value, err := completion.ParseRecordedJSON(f.Value)
	if err != nil {
		return nil, fmt.Errorf("returnValue: %w", err)
	}
	f.Value = value
	return completion.DefaultReturnDeserializer(f)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
