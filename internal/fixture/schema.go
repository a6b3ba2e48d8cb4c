package fixture

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed fixture.cue
var schemaSource string

// Validator checks raw fixture JSON against the embedded #Fixture schema.
// A cue.Context is not safe for concurrent use, so Validate serializes
// callers.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(schemaSource, cue.Filename("fixture.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile fixture schema: %w", formatCUEError(err))
	}
	schema := root.LookupPath(cue.ParsePath("#Fixture"))
	if !schema.Exists() {
		return nil, fmt.Errorf("compile fixture schema: #Fixture not defined")
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

var defaultValidator = sync.OnceValues(NewValidator)

// Validate checks that data, a standard JSON document named name, is a
// well-formed fixture record.
func (v *Validator) Validate(name string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.CompileBytes(data, cue.Filename(name))
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := v.schema.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// SchemaError is a schema violation with its source position.
type SchemaError struct {
	Pos     string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Report the first error, with position info when available
	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 && positions[0].IsValid() {
		pos := positions[0]
		return &SchemaError{
			Pos:     fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column()),
			Message: first.Error(),
		}
	}
	return &SchemaError{Message: first.Error()}
}
