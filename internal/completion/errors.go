package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/roach88/easyfix/internal/fixture"
)

// ReinstantiatedMarker is appended to the message of every replayed error.
const ReinstantiatedMarker = " [reinstantiated by easyfix]"

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Describe captures err's message and stack. The stack comes from the
// first github.com/pkg/errors stack trace in err's chain; without one it is
// "<type>: <message>". Describing a replayed error yields its original
// descriptor, so a re-capture records the same thing.
func Describe(err error) *fixture.ErrorDescriptor {
	if err == nil {
		return nil
	}
	var re *ReinstantiatedError
	if errors.As(err, &re) && error(re) == err {
		return &fixture.ErrorDescriptor{Message: re.OriginalMessage(), Stack: re.Stack}
	}

	desc := &fixture.ErrorDescriptor{Message: err.Error()}
	var st stackTracer
	if errors.As(err, &st) {
		desc.Stack = desc.Message + fmt.Sprintf("%+v", st.StackTrace())
	} else {
		desc.Stack = fmt.Sprintf("%T: %s", err, desc.Message)
	}
	return desc
}

// ReinstantiatedError is an error rebuilt from a fixture. It carries the
// recorded message (with ReinstantiatedMarker), the recorded stack, and the
// error's serialized properties.
type ReinstantiatedError struct {
	Message string
	Stack   string
	Props   map[string]any
}

// Reinstantiate builds a ReinstantiatedError from a descriptor and the
// error's serialized form. Properties are taken from raw when it is a JSON
// object.
func Reinstantiate(desc *fixture.ErrorDescriptor, raw json.RawMessage) *ReinstantiatedError {
	e := &ReinstantiatedError{
		Message: desc.Message + ReinstantiatedMarker,
		Stack:   desc.Stack,
	}
	var props map[string]any
	if len(raw) > 0 && json.Unmarshal(raw, &props) == nil {
		e.Props = props
	}
	return e
}

func (e *ReinstantiatedError) Error() string {
	return e.Message
}

// OriginalMessage returns the recorded message without the marker.
func (e *ReinstantiatedError) OriginalMessage() string {
	return strings.TrimSuffix(e.Message, ReinstantiatedMarker)
}

// Property returns a recorded property of the original error.
func (e *ReinstantiatedError) Property(name string) (any, bool) {
	v, ok := e.Props[name]
	return v, ok
}

// Format prints the recorded stack for %+v.
func (e *ReinstantiatedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.Message)
			if e.Stack != "" {
				io.WriteString(s, "\n"+e.Stack)
			}
			return
		}
		io.WriteString(s, e.Message)
	case 's':
		io.WriteString(s, e.Message)
	case 'q':
		fmt.Fprintf(s, "%q", e.Message)
	}
}

// MarshalJSON serializes the recorded properties, which is the shape the
// original error serialized to.
func (e *ReinstantiatedError) MarshalJSON() ([]byte, error) {
	if e.Props == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Props)
}
