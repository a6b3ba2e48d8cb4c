package completion

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/easyfix/internal/fixture"
)

func TestSafeSerializer(t *testing.T) {
	type node struct {
		Val  int   `json:"val"`
		Circ *node `json:"circ"`
	}
	n := &node{}
	n.Circ = n

	got := SafeSerializer([]any{n})
	text, ok := got.(string)
	require.True(t, ok)
	assert.Equal(t, "[\n  {\n    \"val\": 0,\n    \"circ\": \"[Circular ~.0]\"\n  }\n]", text)
}

func TestParseRecordedJSON(t *testing.T) {
	got, err := ParseRecordedJSON(json.RawMessage(`"[1, 2]"`))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(got))

	passthrough, err := ParseRecordedJSON(json.RawMessage(`[1]`))
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(passthrough))

	_, err = ParseRecordedJSON(json.RawMessage(`"not json"`))
	assert.Error(t, err)
}

func TestDefaultReturnRoundTrip(t *testing.T) {
	types := ResultTypes(reflect.TypeOf(func() (int, error) { return 0, nil }))

	recorded, forward := DefaultReturnSerializer([]any{4, nil}, nil)
	assert.Equal(t, []any{4, nil}, forward)

	raw, err := json.Marshal(recorded)
	require.NoError(t, err)

	out, err := DefaultReturnDeserializer(ReturnFixture{Value: raw, Types: types, Reinstantiate: true})
	require.NoError(t, err)
	assert.Equal(t, []any{4, nil}, out)
}

func TestDefaultReturnDeserializer_RebuildsError(t *testing.T) {
	types := ResultTypes(reflect.TypeOf(func() (string, error) { return "", nil }))

	out, err := DefaultReturnDeserializer(ReturnFixture{
		Value:         json.RawMessage(`["", {}]`),
		Err:           &fixture.ErrorDescriptor{Message: "nope"},
		Types:         types,
		Reinstantiate: true,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.EqualError(t, out[1].(error), "nope [reinstantiated by easyfix]")
}

func TestReaderSerializer_RecordsAtEOF(t *testing.T) {
	var recorded []any
	done := func(args ...any) { recorded = args }

	value, forward := ReaderSerializer([]any{strings.NewReader("hello stream"), nil}, done)
	assert.Nil(t, value, "nothing is known about the output yet")
	require.Len(t, forward, 2)
	assert.Nil(t, recorded)

	text, err := io.ReadAll(forward[0].(io.Reader))
	require.NoError(t, err)
	assert.Equal(t, "hello stream", string(text))
	assert.Equal(t, []any{"hello stream"}, recorded)
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestReaderSerializer_RecordsOnClose(t *testing.T) {
	calls := 0
	var recorded []any
	done := func(args ...any) {
		calls++
		recorded = args
	}

	src := &closeTracker{Reader: strings.NewReader("abcdef")}
	_, forward := ReaderSerializer([]any{src}, done)
	rc := forward[0].(io.ReadCloser)

	buf := make([]byte, 3)
	_, err := rc.Read(buf)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.NoError(t, rc.Close())

	assert.True(t, src.closed)
	assert.Equal(t, 1, calls, "done fires once")
	assert.Equal(t, []any{"abc"}, recorded)
}

func TestReaderSerializer_NonReaderFallsBack(t *testing.T) {
	value, forward := ReaderSerializer([]any{42}, func(...any) { t.Fatal("done must not fire") })
	assert.Equal(t, []any{42}, value)
	assert.Equal(t, []any{42}, forward)
}

func TestReaderDeserializer(t *testing.T) {
	types := ResultTypes(reflect.TypeOf(func() (io.ReadCloser, error) { return nil, nil }))

	out, err := ReaderDeserializer(ReturnFixture{
		Value:     json.RawMessage(`null`),
		AsyncArgs: json.RawMessage(`["hello stream"]`),
		Types:     types,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, out[1])

	text, err := io.ReadAll(out[0].(io.Reader))
	require.NoError(t, err)
	assert.Equal(t, "hello stream", string(text))
}

func TestReaderDeserializer_Error(t *testing.T) {
	types := ResultTypes(reflect.TypeOf(func() (io.Reader, error) { return nil, nil }))

	out, err := ReaderDeserializer(ReturnFixture{
		Err:   &fixture.ErrorDescriptor{Message: "open failed"},
		Types: types,
	})
	require.NoError(t, err)
	var re *ReinstantiatedError
	assert.False(t, errors.As(out[1].(error), &re), "reinstantiation disabled")
	assert.EqualError(t, out[1].(error), "open failed")
}
