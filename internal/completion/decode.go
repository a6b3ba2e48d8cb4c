package completion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/easyfix/internal/fixture"
)

var anyType = reflect.TypeFor[any]()

// Decode splits raw, a recorded JSON array, and decodes element i into a
// value of types[i]. Missing elements, functions and channels decode to
// zero values; interfaces other than any decode to zero values unless the
// generic JSON form is assignable. A JSON null array decodes to all zeros.
//
// The raw elements are returned alongside so callers can recover
// properties that typed decoding dropped.
func Decode(raw json.RawMessage, types []reflect.Type) ([]reflect.Value, []json.RawMessage, error) {
	var elems []json.RawMessage
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, nil, fmt.Errorf("recorded arguments are not a JSON array: %w", err)
		}
	}

	values := make([]reflect.Value, len(types))
	for i, t := range types {
		if i >= len(elems) {
			values[i] = reflect.Zero(t)
			continue
		}
		v, err := decodeValue(elems[i], t)
		if err != nil {
			return nil, nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = v
	}
	return values, elems, nil
}

func decodeValue(elem json.RawMessage, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return reflect.Zero(t), nil
	case reflect.Interface:
		var generic any
		if err := json.Unmarshal(elem, &generic); err != nil {
			return reflect.Value{}, err
		}
		if generic == nil {
			return reflect.Zero(t), nil
		}
		gv := reflect.ValueOf(generic)
		if t == anyType || gv.Type().AssignableTo(t) {
			out := reflect.New(t).Elem()
			out.Set(gv)
			return out, nil
		}
		return reflect.Zero(t), nil
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(elem, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decode into %s: %w", t, err)
	}
	return ptr.Elem(), nil
}

// Rehydrate rebuilds the error in values[idx] from its recorded descriptor.
//
// A slot that already holds an error, which happens when the parameter has
// a concrete error type, is kept as decoded. Otherwise the slot receives a
// ReinstantiatedError, or errors.New(desc.Message) when reinstantiate is
// false. Nothing happens when desc is nil or the rebuilt error is not
// assignable to the slot type.
func Rehydrate(values []reflect.Value, elems []json.RawMessage, idx int, desc *fixture.ErrorDescriptor, reinstantiate bool) {
	if desc == nil || idx < 0 || idx >= len(values) {
		return
	}
	slot := values[idx]
	if slot.IsValid() && !isZero(slot) && slot.Type().Implements(errorType) {
		if _, ok := slot.Interface().(error); ok {
			return
		}
	}

	var rebuilt error
	if reinstantiate {
		var raw json.RawMessage
		if idx < len(elems) {
			raw = elems[idx]
		}
		rebuilt = Reinstantiate(desc, raw)
	} else {
		rebuilt = errors.New(desc.Message)
	}

	rv := reflect.ValueOf(rebuilt)
	t := slot.Type()
	if !rv.Type().AssignableTo(t) {
		return
	}
	out := reflect.New(t).Elem()
	out.Set(rv)
	values[idx] = out
}

// RebuildError returns the error a recorded rejection or returned error
// stands for: a ReinstantiatedError, or errors.New when reinstantiate is
// false.
func RebuildError(desc *fixture.ErrorDescriptor, raw json.RawMessage, reinstantiate bool) error {
	if desc == nil {
		return nil
	}
	if !reinstantiate {
		return errors.New(desc.Message)
	}
	return Reinstantiate(desc, raw)
}

func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return v.IsZero()
}
