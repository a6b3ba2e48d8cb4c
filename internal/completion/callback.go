package completion

import (
	"reflect"
)

// CallbackSwap locates the completion callback among the call arguments.
//
// It returns the original callback and a copy of args in which that
// callback is replaced by wrap(original). When args carry no callback it
// returns a nil original and args unchanged; the call is then handled by the
// promise or return protocol.
type CallbackSwap func(args []any, wrap func(original any) any) (original any, swapped []any)

// LastArgument is the default CallbackSwap: the callback is the final
// argument, if that argument is a non-nil function.
func LastArgument(args []any, wrap func(original any) any) (any, []any) {
	return ArgumentAt(-1)(args, wrap)
}

// ArgumentAt returns a CallbackSwap for a callback at position i. Negative
// positions count from the end, so -1 is the last argument.
func ArgumentAt(i int) CallbackSwap {
	return func(args []any, wrap func(original any) any) (any, []any) {
		idx := i
		if idx < 0 {
			idx += len(args)
		}
		if idx < 0 || idx >= len(args) || !isFunc(args[idx]) {
			return nil, args
		}
		original := args[idx]
		swapped := append([]any(nil), args...)
		swapped[idx] = wrap(original)
		return original, swapped
	}
}

func isFunc(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}

// InterceptCallback returns a function of cb's exact type that passes its
// arguments to record and then forwards them to cb, returning cb's results.
//
// For a variadic callback the final recorded value is the variadic slice.
func InterceptCallback(cb any, record func(args []reflect.Value)) any {
	orig := reflect.ValueOf(cb)
	return reflect.MakeFunc(orig.Type(), func(in []reflect.Value) []reflect.Value {
		record(in)
		return Invoke(orig, in)
	}).Interface()
}

// Invoke calls fn with in, spreading a variadic final slice.
func Invoke(fn reflect.Value, in []reflect.Value) []reflect.Value {
	if fn.Type().IsVariadic() {
		return fn.CallSlice(in)
	}
	return fn.Call(in)
}

// ParamTypes returns the parameter types of function type t.
func ParamTypes(t reflect.Type) []reflect.Type {
	types := make([]reflect.Type, t.NumIn())
	for i := range types {
		types[i] = t.In(i)
	}
	return types
}

// ResultTypes returns the result types of function type t.
func ResultTypes(t reflect.Type) []reflect.Type {
	types := make([]reflect.Type, t.NumOut())
	for i := range types {
		types[i] = t.Out(i)
	}
	return types
}

var errorType = reflect.TypeFor[error]()

// ErrorSlot returns the index among types that carries an error, or -1.
//
// The slot is the first type that is error or implements it. Failing that,
// an interface in first position is taken as the error slot, following the
// error-first callback convention.
func ErrorSlot(types []reflect.Type) int {
	for i, t := range types {
		if t == errorType || t.Implements(errorType) {
			return i
		}
	}
	if len(types) > 0 && types[0].Kind() == reflect.Interface {
		return 0
	}
	return -1
}

// ValuesOf converts reflect values to their interface form. Invalid values
// become nil.
func ValuesOf(in []reflect.Value) []any {
	out := make([]any, len(in))
	for i, v := range in {
		if v.IsValid() && v.CanInterface() {
			out[i] = v.Interface()
		}
	}
	return out
}

// ArgValues converts args to values of types, using the zero value for nil.
// It reports false when an argument is not assignable to its type.
func ArgValues(args []any, types []reflect.Type) ([]reflect.Value, bool) {
	if len(args) != len(types) {
		return nil, false
	}
	out := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			out[i] = reflect.Zero(types[i])
			continue
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(types[i]) {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
