package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/easyfix/internal/fixture"
)

// KeyOptions holds flags for the key command.
type KeyOptions struct {
	Prefix string
	Dir    string
}

// KeyResult is the JSON payload of the key command.
type KeyResult struct {
	Serialized string `json:"serialized"`
	Key        string `json:"key"`
	Path       string `json:"path"`
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{}

	cmd := &cobra.Command{
		Use:   "key --prefix <prefix> <json-args>",
		Short: "Print the fixture key for serialized call arguments",
		Long: `Print the key and path that serialized call arguments map to.

The argument is the JSON form of the call arguments as it appears in a
fixture's callArgs, for example '[{"val":0},null]'. Whitespace is ignored.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKey(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Prefix, "prefix", "p", "", "key prefix, usually the operation name (required)")
	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", "", "fixture directory")
	_ = cmd.MarkFlagRequired("prefix")

	return cmd
}

func runKey(rootOpts *RootOptions, opts *KeyOptions, args string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	serialized, err := SerializedArgs(args)
	if err != nil {
		return commandError(formatter, ErrCodeInvalidArgs, err.Error(), nil)
	}

	dir, err := fixtureDir(rootOpts, []string{opts.Dir})
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err.Error(), nil)
	}

	key := fixture.DeriveKey(serialized, opts.Prefix)
	result := &KeyResult{
		Serialized: serialized,
		Key:        key,
		Path:       fixture.FixturePath(dir, key),
	}

	formatter.VerboseLog("serialized: %s", result.Serialized)
	return formatter.Emit(result)
}

// WriteText prints the key, then the fixture path.
func (r *KeyResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", r.Key, r.Path)
	return err
}

// SerializedArgs returns text in the form keys are derived from: compact
// JSON with strings in Unicode NFC.
func SerializedArgs(text string) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return "", fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return norm.NFC.String(buf.String()), nil
}
