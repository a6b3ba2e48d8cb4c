package fixture

import (
	"errors"
	"fmt"
)

// Error represents a fixture lookup or validation failure.
//
// Fixture errors include:
//   - Not found: replay found no fixture at the expected path
//   - Corrupt: the fixture is unreadable, fails the schema or does not fit the call
//   - Key collision: a fixture at the derived path was recorded for other arguments
//   - Ambiguous promise: a promise record carries no usable settlement
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the fixture path involved.
	Path string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes fixture errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates replay found no fixture for the call.
	ErrCodeNotFound ErrorCode = "FIXTURE_NOT_FOUND"

	// ErrCodeCorrupt indicates the fixture could not be used.
	ErrCodeCorrupt ErrorCode = "FIXTURE_CORRUPT"

	// ErrCodeCollision indicates two argument lists mapped to one key.
	ErrCodeCollision ErrorCode = "KEY_COLLISION"

	// ErrCodeAmbiguous indicates a promise record with neither resolution
	// nor rejection data.
	ErrCodeAmbiguous ErrorCode = "PROMISE_FIXTURE_AMBIGUOUS"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsNotFound reports whether err is a missing-fixture error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsCorrupt reports whether err is a corrupt-fixture error.
func IsCorrupt(err error) bool {
	return hasCode(err, ErrCodeCorrupt)
}

// IsCollision reports whether err is a key collision.
func IsCollision(err error) bool {
	return hasCode(err, ErrCodeCollision)
}

// IsAmbiguous reports whether err is an ambiguous promise fixture.
func IsAmbiguous(err error) bool {
	return hasCode(err, ErrCodeAmbiguous)
}

// NewNotFoundError creates the replay-miss diagnostic. It names the expected
// path, embeds the serialized arguments that produced the lookup and suggests
// recording the fixture.
func NewNotFoundError(path, serializedArgs string) *Error {
	return &Error{
		Code: ErrCodeNotFound,
		Message: fmt.Sprintf(
			"no fixture recorded for call arguments %s; run the test with TEST_MODE=capture to record it",
			serializedArgs),
		Path: path,
		Details: map[string]string{
			"args": serializedArgs,
		},
	}
}

// NewCorruptError creates a FIXTURE_CORRUPT error wrapping cause.
func NewCorruptError(path, reason string, cause error) *Error {
	msg := reason
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", reason, cause)
	}
	return &Error{
		Code:    ErrCodeCorrupt,
		Message: msg,
		Path:    path,
		Err:     cause,
	}
}

// NewCollisionError creates a KEY_COLLISION error.
func NewCollisionError(path, recorded, current string) *Error {
	return &Error{
		Code:    ErrCodeCollision,
		Message: "fixture was recorded for different call arguments; choose a distinct prefix or an explicit path",
		Path:    path,
		Details: map[string]string{
			"recorded": recorded,
			"current":  current,
		},
	}
}

// NewAmbiguousError creates a PROMISE_FIXTURE_AMBIGUOUS error.
func NewAmbiguousError(path string) *Error {
	return &Error{
		Code:    ErrCodeAmbiguous,
		Message: "promise fixture has neither promiseResolutionArgs nor promiseRejectionArgs",
		Path:    path,
	}
}
