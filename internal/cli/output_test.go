package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_Emit(t *testing.T) {
	result := &KeyResult{Serialized: `["a<b>&c"]`, Key: "op-18b058689d01", Path: "test/data/op-18b058689d01.json"}

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, formatter.Emit(result))

		var env struct {
			Status string       `json:"status"`
			Data   KeyResult    `json:"data"`
			Error  *ErrorDetail `json:"error"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
		assert.Equal(t, "ok", env.Status)
		assert.Equal(t, *result, env.Data)
		assert.Nil(t, env.Error)
		assert.Contains(t, buf.String(), `a<b>&c`, "HTML is not escaped")
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, formatter.Emit(result))
		assert.Equal(t, "op-18b058689d01\ntest/data/op-18b058689d01.json\n", buf.String())
	})
}

func TestOutputFormatter_EmitFailure(t *testing.T) {
	report := &VerifyResult{
		Dir:     "test/data",
		Checked: 2,
		Problems: []FixtureInfo{{
			Path:    "test/data/op-000000000000.json",
			Problem: &Problem{Code: "FIXTURE_CORRUPT", Message: "record has no outcome"},
		}},
	}
	detail := ErrorDetail{Code: "FIXTURE_CORRUPT", Message: "record has no outcome"}

	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, formatter.EmitFailure(report, detail))

	var env Envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, detail, *env.Error)
	assert.NotNil(t, env.Data)

	buf.Reset()
	formatter.Format = "text"
	require.NoError(t, formatter.EmitFailure(report, detail))
	assert.Equal(t,
		"✗ Verification failed\n\ntest/data/op-000000000000.json\n  FIXTURE_CORRUPT: record has no outcome\n\n",
		buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E005", "fixture directory not found", map[string]string{"dir": "x"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, "error", env.Status)
	assert.Nil(t, env.Data)
	require.NotNil(t, env.Error)
	assert.Equal(t, "E005", env.Error.Code)
	assert.Equal(t, "fixture directory not found", env.Error.Message)
	assert.NotNil(t, env.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			err := formatter.Error("FIXTURE_CORRUPT", "record has no outcome", map[string]string{"path": "a.json"})
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "Error [FIXTURE_CORRUPT]: record has no outcome")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	formatter.VerboseLog("Reading %s", "a.json")
	assert.Empty(t, out.String())
	assert.Equal(t, "Reading a.json\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("ignored")
	assert.Equal(t, "Reading a.json\n", errOut.String())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("x"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped", fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "verify", errors.New("x"))), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	cause := errors.New("permission denied")
	err := WrapExitError(ExitCommandError, "read fixture", cause)
	assert.Equal(t, "read fixture: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}
