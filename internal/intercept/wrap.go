package intercept

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/easyfix/internal/completion"
	"github.com/roach88/easyfix/internal/config"
	"github.com/roach88/easyfix/internal/fixture"
	"github.com/roach88/easyfix/internal/safejson"
)

// Handle controls one interception.
type Handle struct {
	res    Resolved
	slot   reflect.Value
	orig   reflect.Value
	fnType reflect.Type
	tracer trace.Tracer

	// hasCtx is true when the first parameter is a context.Context.
	hasCtx bool

	calls atomic.Int64

	restoreOnce sync.Once
}

var contextType = reflect.TypeFor[context.Context]()

// Wrap intercepts the function stored in *target. name identifies the
// operation and is the default fixture prefix.
func Wrap[F any](target *F, name string, cfg Config) (*Handle, error) {
	if target == nil {
		return nil, fmt.Errorf("wrap %s: nil target", name)
	}
	return bind(reflect.ValueOf(target).Elem(), name, cfg)
}

// WrapMethod intercepts the exported function-typed field method of the
// struct obj points to.
func WrapMethod(obj any, method string, cfg Config) (*Handle, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("wrap %s: want a non-nil pointer to a struct, got %T", method, obj)
	}
	field := v.Elem().FieldByName(method)
	if !field.IsValid() {
		return nil, fmt.Errorf("wrap %s: %T has no field %s", method, obj, method)
	}
	return bind(field, method, cfg)
}

func bind(slot reflect.Value, name string, cfg Config) (*Handle, error) {
	if slot.Kind() != reflect.Func {
		return nil, fmt.Errorf("wrap %s: %s is not a function", name, slot.Type())
	}
	if !slot.CanSet() {
		return nil, fmt.Errorf("wrap %s: field is not settable (unexported?)", name)
	}
	if slot.IsNil() {
		return nil, fmt.Errorf("wrap %s: function is nil", name)
	}

	env, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", name, err)
	}
	res, err := cfg.Resolve(name, env)
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", name, err)
	}

	fnType := slot.Type()
	h := &Handle{
		res:    res,
		slot:   slot,
		orig:   reflect.ValueOf(slot.Interface()),
		fnType: fnType,
		tracer: res.TracerProvider.Tracer(tracerName),
		hasCtx: fnType.NumIn() > 0 && fnType.In(0) == contextType,
	}
	slot.Set(reflect.MakeFunc(fnType, h.call))

	res.Logger.Debug("wrapped operation",
		"name", name,
		"mode", res.Mode,
		"directory", res.Directory,
		"prefix", res.Prefix)
	return h, nil
}

// Restore puts the original function back. It is safe to call more than
// once.
func (h *Handle) Restore() {
	h.restoreOnce.Do(func() {
		h.slot.Set(h.orig)
	})
}

// CallCount returns the number of intercepted calls so far.
func (h *Handle) CallCount() int {
	return int(h.calls.Load())
}

// Config returns the resolved configuration.
func (h *Handle) Config() Resolved {
	return h.res
}

// FixturePath returns the fixture path a call with args maps to. A leading
// context argument is ignored just as it is for real calls.
func (h *Handle) FixturePath(args ...any) string {
	if h.hasCtx && len(args) > 0 {
		if _, ok := args[0].(context.Context); ok {
			args = args[1:]
		}
	}
	serialized, _ := h.serializeArgs(args)
	return h.pathFor(serialized)
}

// call is the body of the replacement function.
func (h *Handle) call(in []reflect.Value) []reflect.Value {
	h.calls.Add(1)

	args := completion.ValuesOf(in)
	ctx := context.Background()
	keyArgs := args
	if h.hasCtx {
		if c, ok := args[0].(context.Context); ok && c != nil {
			ctx = c
		}
		keyArgs = args[1:]
	}

	c := &callState{
		h:    h,
		id:   newCallID(),
		in:   in,
		args: args,
	}
	if h.res.Mode != config.ModeLive {
		c.serialized, c.callArgs = h.serializeArgs(keyArgs)
		c.path = h.pathFor(c.serialized)
	}

	_, span := h.startSpan(ctx, c)
	defer span.End()
	c.span = span

	h.res.Logger.Debug("intercepted call",
		"call_id", c.id,
		"name", h.res.Name,
		"mode", h.res.Mode,
		"path", c.path)

	switch h.res.Mode {
	case config.ModeCapture:
		return c.capture()
	case config.ModeReplay:
		return c.replay()
	default:
		c.setOutcome("live")
		return completion.Invoke(h.orig, in)
	}
}

// callState is the per-call state shared by capture and replay.
type callState struct {
	h    *Handle
	id   string
	in   []reflect.Value
	args []any
	span trace.Span

	serialized string
	callArgs   []byte
	path       string
}

func newCallID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (h *Handle) serializeArgs(args []any) (string, []byte) {
	b := safejson.Marshal(h.res.ArgumentSerializer(args), safejson.Options{NormalizeStrings: true})
	return string(b), b
}

func (h *Handle) serializeResponse(args []any) []byte {
	return safejson.Marshal(h.res.ResponseSerializer(args), safejson.Options{})
}

func (h *Handle) pathFor(serialized string) string {
	if h.res.Path != "" {
		return h.res.Path
	}
	return fixture.FixturePath(h.res.Directory, fixture.DeriveKey(serialized, h.res.Prefix))
}

// fail reports a synchronous failure and returns zero results for the
// case where OnFailure returns.
func (c *callState) fail(err error) []reflect.Value {
	c.h.res.Logger.Error("intercepted call failed",
		"call_id", c.id,
		"name", c.h.res.Name,
		"path", c.path,
		"error", err)
	c.recordError(err)
	c.h.res.OnFailure(err)
	return zeroResults(c.h.fnType)
}

func zeroResults(t reflect.Type) []reflect.Value {
	out := make([]reflect.Value, t.NumOut())
	for i := range out {
		out[i] = reflect.Zero(t.Out(i))
	}
	return out
}

// assign converts v to a value of exactly type t.
func assign(v reflect.Value, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	out.Set(v)
	return out
}
