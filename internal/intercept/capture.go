package intercept

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/roach88/easyfix/internal/completion"
	"github.com/roach88/easyfix/internal/fixture"
	"github.com/roach88/easyfix/internal/safejson"
)

// recording is the fixture record of one captured call. The outcome may be
// filled in from any goroutine, so every update and write holds mu.
type recording struct {
	c    *callState
	mu   sync.Mutex
	rec  fixture.Record
	path string
}

// update applies fn to the record and writes the result. Writes are not
// deduplicated: the fixture is rewritten on every outcome event.
func (r *recording) update(fn func(rec *fixture.Record)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.rec)
	if err := r.c.h.res.Store.Write(r.path, &r.rec); err != nil {
		r.c.h.res.Logger.Error("fixture write failed",
			"call_id", r.c.id,
			"path", r.path,
			"error", err)
		r.c.h.res.OnFailure(err)
	}
}

// capture runs the real operation and records its outcome.
func (c *callState) capture() []reflect.Value {
	h := c.h
	r := &recording{
		c:    c,
		rec:  fixture.Record{CallArgs: c.callArgs},
		path: c.path,
	}

	original, swapped := h.res.CallbackSwap(c.args, func(cb any) any {
		types := completion.ParamTypes(reflect.TypeOf(cb))
		slot := completion.ErrorSlot(types)
		return completion.InterceptCallback(cb, func(in []reflect.Value) {
			cbArgs := completion.ValuesOf(in)
			r.update(func(rec *fixture.Record) {
				rec.CallbackArgs = h.serializeResponse(cbArgs)
				rec.CalledBackWithError = describeSlot(cbArgs, slot)
			})
		})
	})
	if original != nil {
		c.setOutcome(string(fixture.OutcomeCallback))
		in, ok := completion.ArgValues(swapped, completion.ParamTypes(h.fnType))
		if !ok {
			return c.fail(fmt.Errorf("callback swap for %s returned arguments that do not fit %s", h.res.Name, h.fnType))
		}
		return completion.Invoke(h.orig, in)
	}

	out := completion.Invoke(h.orig, c.in)
	results := completion.ValuesOf(out)

	if len(out) == 1 {
		if th, ok := thenable(out[0]); ok {
			c.setOutcome(string(fixture.OutcomePromise))
			return c.capturePromise(r, th, out[0])
		}
	}

	c.setOutcome(string(fixture.OutcomeReturn))
	return c.captureReturn(r, out, results)
}

// thenable reports whether v holds a non-nil Thenable.
func thenable(v reflect.Value) (completion.Thenable, bool) {
	if !v.IsValid() || !v.CanInterface() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil, false
		}
	}
	th, ok := v.Interface().(completion.Thenable)
	return th, ok
}

// capturePromise records the settlement of th. The caller receives a fresh
// promise of the same type, settled only after the fixture is written.
func (c *callState) capturePromise(r *recording, th completion.Thenable, result reflect.Value) []reflect.Value {
	h := c.h

	fresh, err := completion.NewSettler(reflect.TypeOf(th))
	if err != nil {
		// Not re-settleable: record alongside the caller's own handlers.
		h.res.Logger.Debug("promise type cannot be re-settled; returning the original",
			"call_id", c.id,
			"type", reflect.TypeOf(th).String())
	}

	r.mu.Lock()
	r.rec.ReturnedPromise = true
	r.mu.Unlock()

	th.OnSettled(func(value any, settleErr error) {
		r.update(func(rec *fixture.Record) {
			if settleErr != nil {
				rec.PromiseRejectionArgs = h.serializeResponse([]any{settleErr})
				rec.RejectedWithError = completion.Describe(settleErr)
				return
			}
			rec.PromiseResolutionArgs = h.serializeResponse([]any{value})
		})
		if fresh == nil {
			return
		}
		if err := fresh.Settle(value, settleErr); err != nil {
			h.res.OnFailure(fmt.Errorf("re-settle promise for %s: %w", h.res.Name, err))
		}
	})

	if fresh == nil {
		return []reflect.Value{result}
	}
	return []reflect.Value{assign(reflect.ValueOf(fresh), h.fnType.Out(0))}
}

// captureReturn records results through the return value serializer.
func (c *callState) captureReturn(r *recording, out []reflect.Value, results []any) []reflect.Value {
	h := c.h
	types := completion.ResultTypes(h.fnType)

	var returnedErr *fixture.ErrorDescriptor
	if n := len(results); n > 0 && types[n-1] == errorType {
		if err, ok := results[n-1].(error); ok {
			returnedErr = completion.Describe(err)
		}
	}

	var once sync.Once
	done := func(args ...any) {
		once.Do(func() {
			r.update(func(rec *fixture.Record) {
				rec.ReturnValueAsyncCallbackArgs = safejson.Marshal(args, safejson.Options{})
			})
		})
	}

	recorded, forward := h.res.ReturnValueSerializer(results, done)
	r.update(func(rec *fixture.Record) {
		rec.ReturnValue = safejson.Marshal(recorded, safejson.Options{})
		rec.ReturnedWithError = returnedErr
	})

	values, ok := completion.ArgValues(forward, types)
	if !ok {
		h.res.OnFailure(fmt.Errorf("return value serializer for %s forwarded results that do not fit %s", h.res.Name, h.fnType))
		return out
	}
	return values
}

var errorType = reflect.TypeFor[error]()

// describeSlot describes the error in args[slot], if any.
func describeSlot(args []any, slot int) *fixture.ErrorDescriptor {
	if slot < 0 || slot >= len(args) {
		return nil
	}
	err, ok := args[slot].(error)
	if !ok || err == nil {
		return nil
	}
	if v := reflect.ValueOf(err); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return completion.Describe(err)
}
