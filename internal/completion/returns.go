package completion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/roach88/easyfix/internal/fixture"
	"github.com/roach88/easyfix/internal/safejson"
)

// Serializer maps raw call or callback arguments to the form that is
// recorded.
type Serializer func(args []any) any

// Deserializer maps a recorded payload back to a JSON array of arguments.
type Deserializer func(recorded json.RawMessage) (json.RawMessage, error)

// ReturnSerializer records the results of an operation handled by the
// return protocol. It returns the value recorded immediately as returnValue
// and the results forwarded to the caller, which may differ, for instance a
// producer wrapped so its output can be observed. Calling done, at any time
// and at most once, records its arguments as returnValueAsyncCallbackArgs.
type ReturnSerializer func(results []any, done func(args ...any)) (recorded any, forward []any)

// ReturnFixture is what a ReturnDeserializer rebuilds results from.
type ReturnFixture struct {
	// Value is the recorded returnValue.
	Value json.RawMessage

	// AsyncArgs is the recorded returnValueAsyncCallbackArgs, if any.
	AsyncArgs json.RawMessage

	// Err describes a non-nil trailing error result.
	Err *fixture.ErrorDescriptor

	// Types are the operation's result types.
	Types []reflect.Type

	// Reinstantiate mirrors the error reinstantiation policy.
	Reinstantiate bool
}

// ReturnDeserializer rebuilds an operation's results on replay. The returned
// slice must hold one value per result type.
type ReturnDeserializer func(f ReturnFixture) ([]any, error)

// Identity returns its arguments unchanged.
func Identity(args []any) any {
	return args
}

// IdentityDeserializer returns recorded unchanged.
func IdentityDeserializer(recorded json.RawMessage) (json.RawMessage, error) {
	return recorded, nil
}

// ParseRecordedJSON undoes a serializer that recorded JSON text: a recorded
// JSON string holding a JSON document is replaced by that document. Anything
// else is returned unchanged.
func ParseRecordedJSON(recorded json.RawMessage) (json.RawMessage, error) {
	var text string
	if err := json.Unmarshal(recorded, &text); err != nil {
		return recorded, nil
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("recorded text is not JSON: %q", truncate(text, 64))
	}
	return json.RawMessage(text), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SafeSerializer records arguments as pretty JSON text produced by the
// cycle-safe encoder. Pair it with the default deserializer.
func SafeSerializer(args []any) any {
	return safejson.Stringify(args, nil, "  ", nil)
}

// DefaultReturnSerializer records the results as they are and forwards them
// unchanged.
func DefaultReturnSerializer(results []any, _ func(args ...any)) (any, []any) {
	return results, results
}

// DefaultReturnDeserializer decodes the recorded results into the result
// types and rebuilds a trailing error from its descriptor.
func DefaultReturnDeserializer(f ReturnFixture) ([]any, error) {
	values, elems, err := Decode(f.Value, f.Types)
	if err != nil {
		return nil, err
	}
	if n := len(f.Types); n > 0 && f.Types[n-1] == errorType {
		Rehydrate(values, elems, n-1, f.Err, f.Reinstantiate)
	}
	return ValuesOf(values), nil
}

// ReaderSerializer captures an io.Reader returned as the first result. The
// caller receives a reader that copies everything read; once it reaches EOF
// or is closed, done is called with the text read so far. Results without a
// reader are handled like DefaultReturnSerializer.
func ReaderSerializer(results []any, done func(args ...any)) (any, []any) {
	if len(results) == 0 {
		return results, results
	}
	r, ok := results[0].(io.Reader)
	if !ok || r == nil {
		return results, results
	}
	forward := append([]any(nil), results...)
	forward[0] = &teeReader{src: r, done: done}
	return nil, forward
}

// ReaderDeserializer rebuilds a reader pre-loaded with the text recorded by
// ReaderSerializer as the first result. Remaining results are zero, except
// for a trailing error rebuilt from its descriptor.
func ReaderDeserializer(f ReturnFixture) ([]any, error) {
	var recorded []string
	if len(f.AsyncArgs) > 0 {
		if err := json.Unmarshal(f.AsyncArgs, &recorded); err != nil {
			return nil, fmt.Errorf("recorded reader output: %w", err)
		}
	}
	text := ""
	if len(recorded) > 0 {
		text = recorded[0]
	}

	out := make([]any, len(f.Types))
	if len(out) == 0 {
		return out, nil
	}
	out[0] = io.NopCloser(strings.NewReader(text))
	if n := len(f.Types); n > 1 && f.Types[n-1] == errorType {
		if err := RebuildError(f.Err, nil, f.Reinstantiate); err != nil {
			out[n-1] = err
		}
	}
	return out, nil
}

// teeReader records what the caller reads from src.
type teeReader struct {
	src  io.Reader
	done func(args ...any)

	mu   sync.Mutex
	buf  bytes.Buffer
	once sync.Once
}

func (t *teeReader) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		t.mu.Lock()
		t.buf.Write(p[:n])
		t.mu.Unlock()
	}
	if err == io.EOF {
		t.finish()
	}
	return n, err
}

// Close closes src when it is an io.Closer and finishes the recording.
func (t *teeReader) Close() error {
	var err error
	if c, ok := t.src.(io.Closer); ok {
		err = c.Close()
	}
	t.finish()
	return err
}

func (t *teeReader) finish() {
	t.once.Do(func() {
		t.mu.Lock()
		text := t.buf.String()
		t.mu.Unlock()
		t.done(text)
	})
}
