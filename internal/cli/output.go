package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every fixture checked is replayable
	ExitFailure      = 1 // a fixture is corrupt, ambiguous or misnamed
	ExitCommandError = 2 // the command itself could not run
)

// Error codes for command-level failures. Per-fixture problems use the
// fixture package's codes (FIXTURE_CORRUPT, ...).
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002" // fixture directory could not be walked
	ErrCodeNoFixtures  = "E003"
	ErrCodeConfig      = "E004" // --config or EASYFIX_CONFIG unreadable
	ErrCodeNotFound    = "E005"
	ErrCodeInvalidArgs = "E006"
	ErrCodeKeyMismatch = "E101" // file name is not the key of its callArgs
)

// ExitError carries the process exit code of a failed command. The command
// has already written its own report when it returns one.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that are not an
// ExitError count as ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// textReport is a command result with a human-readable rendering.
type textReport interface {
	WriteText(w io.Writer) error
}

// Envelope wraps every JSON document the commands print.
type Envelope struct {
	Status string       `json:"status"` // "ok" or "error"
	Data   any          `json:"data,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail names what went wrong, with a command code (E001...) or a
// fixture error code (FIXTURE_CORRUPT...).
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as a JSON Envelope.
// Diagnostics go to ErrWriter so they never mix with a JSON document.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Emit prints a successful result.
func (f *OutputFormatter) Emit(result textReport) error {
	if f.isJSON() {
		return f.encode(Envelope{Status: "ok", Data: result})
	}
	return result.WriteText(f.Writer)
}

// EmitFailure prints a result that also failed, such as a verification
// report listing broken fixtures. detail is the first problem found.
func (f *OutputFormatter) EmitFailure(result textReport, detail ErrorDetail) error {
	if f.isJSON() {
		return f.encode(Envelope{Status: "error", Data: result, Error: &detail})
	}
	return result.WriteText(f.Writer)
}

// Error prints an error that has no result.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(Envelope{
			Status: "error",
			Error:  &ErrorDetail{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encode(env Envelope) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(env)
}

// VerboseLog prints a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// commandError reports a failure of the command itself (exit code 2).
func commandError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
