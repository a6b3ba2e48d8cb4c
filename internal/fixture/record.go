package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorDescriptor preserves what plain serialization of an error loses.
type ErrorDescriptor struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// Record is the persisted observation of one call.
//
// JSON field names are the on-disk format. Every payload is kept as raw JSON
// so that replay can decode it into the parameter types of the call being
// replayed.
type Record struct {
	CallArgs json.RawMessage `json:"callArgs"`

	// Callback protocol.
	CallbackArgs        json.RawMessage  `json:"callbackArgs,omitempty"`
	CalledBackWithError *ErrorDescriptor `json:"calledBackWithError,omitempty"`

	// Promise protocol.
	ReturnedPromise       bool             `json:"returnedPromise,omitempty"`
	PromiseResolutionArgs json.RawMessage  `json:"promiseResolutionArgs,omitempty"`
	PromiseRejectionArgs  json.RawMessage  `json:"promiseRejectionArgs,omitempty"`
	RejectedWithError     *ErrorDescriptor `json:"rejectedWithError,omitempty"`

	// Return protocol.
	ReturnValue                  json.RawMessage  `json:"returnValue,omitempty"`
	ReturnValueAsyncCallbackArgs json.RawMessage  `json:"returnValueAsyncCallbackArgs,omitempty"`
	ReturnedWithError            *ErrorDescriptor `json:"returnedWithError,omitempty"`
}

// Outcome names the completion protocol a record was captured under.
type Outcome string

const (
	OutcomeCallback Outcome = "callback"
	OutcomePromise  Outcome = "promise"
	OutcomeReturn   Outcome = "return"
)

// Outcome reports which protocol the record describes. A record with no
// outcome, or with fields of more than one protocol, is corrupt.
func (r *Record) Outcome() (Outcome, error) {
	var kinds []Outcome
	if r.CallbackArgs != nil || r.CalledBackWithError != nil {
		kinds = append(kinds, OutcomeCallback)
	}
	if r.ReturnedPromise || r.PromiseResolutionArgs != nil || r.PromiseRejectionArgs != nil || r.RejectedWithError != nil {
		kinds = append(kinds, OutcomePromise)
	}
	if r.ReturnValue != nil || r.ReturnValueAsyncCallbackArgs != nil || r.ReturnedWithError != nil {
		kinds = append(kinds, OutcomeReturn)
	}

	switch len(kinds) {
	case 1:
		return kinds[0], nil
	case 0:
		return "", NewCorruptError("", "record has no outcome", nil)
	default:
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		return "", NewCorruptError("", fmt.Sprintf("record mixes outcomes: %s", strings.Join(names, ", ")), nil)
	}
}

// Settlement reports how a promise record settled. It fails with
// PROMISE_FIXTURE_AMBIGUOUS when the record carries neither resolution nor
// rejection data, or both.
func (r *Record) Settlement() (rejected bool, args json.RawMessage, err error) {
	switch {
	case r.PromiseResolutionArgs != nil && r.PromiseRejectionArgs == nil:
		return false, r.PromiseResolutionArgs, nil
	case r.PromiseRejectionArgs != nil && r.PromiseResolutionArgs == nil:
		return true, r.PromiseRejectionArgs, nil
	}
	return false, nil, NewAmbiguousError("")
}

// SameCallArgs reports whether the record was captured for serialized call
// arguments equal to args, ignoring insignificant whitespace.
func (r *Record) SameCallArgs(args json.RawMessage) bool {
	return SameJSON(r.CallArgs, args)
}

// SameJSON reports whether a and b are the same JSON text up to
// insignificant whitespace.
func SameJSON(a, b []byte) bool {
	return bytes.Equal(compact(a), compact(b))
}

func compact(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
