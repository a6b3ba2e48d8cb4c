package intercept

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/easyfix/internal/completion"
	"github.com/roach88/easyfix/internal/fixture"
)

// replay synthesizes the call's outcome from its fixture without running
// the real operation.
func (c *callState) replay() []reflect.Value {
	h := c.h

	rec, err := h.res.Store.Read(c.path)
	if err != nil {
		if fixture.IsNotFound(err) {
			nf := fixture.NewNotFoundError(c.path, c.serialized)
			nf.Err = err
			return c.fail(nf)
		}
		return c.fail(err)
	}

	if h.res.Path == "" {
		if err := c.checkCollision(rec); err != nil {
			return c.fail(err)
		}
	}

	outcome, err := rec.Outcome()
	if err != nil {
		return c.fail(withPath(err, c.path))
	}
	c.setOutcome(string(outcome))

	switch outcome {
	case fixture.OutcomeCallback:
		return c.replayCallback(rec)
	case fixture.OutcomePromise:
		return c.replayPromise(rec)
	default:
		return c.replayReturn(rec)
	}
}

// checkCollision fails when the fixture at the derived path was recorded
// for different arguments. Both sides come from the same serializer, so the
// recorded text is compared first; the deserializer only decides between
// texts that differ.
func (c *callState) checkCollision(rec *fixture.Record) error {
	if fixture.SameJSON(rec.CallArgs, c.callArgs) {
		return nil
	}
	deserialize := c.h.res.ArgumentDeserializer
	recorded, err := deserialize(rec.CallArgs)
	if err == nil {
		current, cerr := deserialize(c.callArgs)
		if cerr == nil && fixture.SameJSON(recorded, current) {
			return nil
		}
	}
	return fixture.NewCollisionError(c.path, compactString(rec.CallArgs), c.serialized)
}

func (c *callState) replayCallback(rec *fixture.Record) []reflect.Value {
	h := c.h

	original, _ := h.res.CallbackSwap(c.args, func(cb any) any { return cb })
	if original == nil {
		return c.fail(fixture.NewCorruptError(c.path, "fixture records a callback but the call has none", nil))
	}

	cb := reflect.ValueOf(original)
	types := completion.ParamTypes(cb.Type())

	raw, err := h.res.ResponseDeserializer(rec.CallbackArgs)
	if err != nil {
		return c.fail(fixture.NewCorruptError(c.path, "callbackArgs", err))
	}
	values, elems, err := completion.Decode(raw, types)
	if err != nil {
		return c.fail(fixture.NewCorruptError(c.path, "callbackArgs do not fit the callback", err))
	}
	completion.Rehydrate(values, elems, completion.ErrorSlot(types), rec.CalledBackWithError, h.res.Reinstantiate)

	h.res.Scheduler.Schedule(func() {
		completion.Invoke(cb, values)
	})
	return zeroResults(h.fnType)
}

func (c *callState) replayPromise(rec *fixture.Record) []reflect.Value {
	h := c.h

	if h.fnType.NumOut() != 1 {
		return c.fail(fixture.NewCorruptError(c.path, "fixture records a promise but the operation does not return one", nil))
	}
	resultType := h.fnType.Out(0)
	fresh, err := completion.NewSettler(settlerFor(resultType))
	if err != nil {
		return c.fail(fixture.NewCorruptError(c.path, "fixture records a promise", err))
	}
	result := []reflect.Value{assign(reflect.ValueOf(fresh), resultType)}

	rejected, raw, err := rec.Settlement()
	if err != nil {
		ambiguous := withPath(err, c.path)
		c.recordError(ambiguous)
		h.res.Scheduler.Schedule(func() {
			fresh.Settle(nil, ambiguous)
		})
		return result
	}

	raw, err = h.res.ResponseDeserializer(raw)
	if err != nil {
		return c.fail(fixture.NewCorruptError(c.path, "promise settlement", err))
	}

	var (
		value     any
		rejection error
	)
	if rejected {
		_, elems, err := completion.Decode(raw, nil)
		if err != nil {
			return c.fail(fixture.NewCorruptError(c.path, "promiseRejectionArgs", err))
		}
		var first json.RawMessage
		if len(elems) > 0 {
			first = elems[0]
		}
		rejection = completion.RebuildError(rec.RejectedWithError, first, h.res.Reinstantiate)
		if rejection == nil {
			rejection = fmt.Errorf("promise rejected with %s", compactString(first))
		}
	} else {
		values, _, err := completion.Decode(raw, []reflect.Type{fresh.ValueType()})
		if err != nil {
			return c.fail(fixture.NewCorruptError(c.path, "promiseResolutionArgs do not fit the promise", err))
		}
		value = values[0].Interface()
	}

	h.res.Scheduler.Schedule(func() {
		if err := fresh.Settle(value, rejection); err != nil {
			h.res.OnFailure(fmt.Errorf("settle replayed promise for %s: %w", h.res.Name, err))
		}
	})
	return result
}

func (c *callState) replayReturn(rec *fixture.Record) []reflect.Value {
	h := c.h
	types := completion.ResultTypes(h.fnType)

	results, err := h.res.ReturnValueDeserializer(completion.ReturnFixture{
		Value:         rec.ReturnValue,
		AsyncArgs:     rec.ReturnValueAsyncCallbackArgs,
		Err:           rec.ReturnedWithError,
		Types:         types,
		Reinstantiate: h.res.Reinstantiate,
	})
	if err != nil {
		return c.fail(fixture.NewCorruptError(c.path, "returnValue", err))
	}
	values, ok := completion.ArgValues(results, types)
	if !ok {
		return c.fail(fixture.NewCorruptError(c.path,
			fmt.Sprintf("returnValue does not fit %s", h.fnType), nil))
	}
	return values
}

// settlerFor picks the promise type created for a replayed result of type t.
// An interface result gets a *Promise[any], the only type replay can know.
func settlerFor(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Interface && anyPromiseType.AssignableTo(t) {
		return anyPromiseType
	}
	return t
}

var anyPromiseType = reflect.TypeOf((*completion.Promise[any])(nil))

// withPath fills in the path of a fixture error that lacks one.
func withPath(err error, path string) error {
	var fe *fixture.Error
	if errors.As(err, &fe) && fe.Path == "" {
		fe.Path = path
	}
	return err
}

func compactString(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
