package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	Prefix string
}

// VerifyResult is the JSON payload of the verify command.
type VerifyResult struct {
	Dir      string        `json:"dir"`
	Checked  int           `json:"checked"`
	Valid    bool          `json:"valid"`
	Problems []FixtureInfo `json:"problems,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify [dir]",
		Short: "Check that every fixture can be replayed",
		Long: `Check that every fixture under a directory can be replayed.

A fixture fails verification when it is not valid JSON, does not match the
fixture schema, records no outcome or more than one, is a promise fixture
that neither resolved nor rejected, or when its file name is not the key its
callArgs hash to.

Exits 1 when any fixture fails.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only verify fixtures with this key prefix")

	return cmd
}

func runVerify(rootOpts *RootOptions, opts *VerifyOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	dir, err := fixtureDir(rootOpts, args)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err.Error(), nil)
	}

	result, err := LoadFixtures(dir, opts.Prefix)
	if err != nil {
		return loadFailure(formatter, err)
	}
	if len(result.Fixtures) == 0 {
		return commandError(formatter, ErrCodeNoFixtures, fmt.Sprintf("no fixtures found in %s", dir), nil)
	}

	for _, f := range result.Fixtures {
		formatter.VerboseLog("Checked %s", f.Path)
	}

	problems := result.Problems()
	report := &VerifyResult{
		Dir:      dir,
		Checked:  len(result.Fixtures),
		Valid:    len(problems) == 0,
		Problems: problems,
	}
	rootOpts.Logger.Debug("verified fixtures", "dir", dir, "checked", report.Checked, "problems", len(problems))

	if report.Valid {
		return formatter.Emit(report)
	}

	first := problems[0].Problem
	if err := formatter.EmitFailure(report, ErrorDetail{Code: first.Code, Message: first.Message}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("verification failed for %d of %d fixture(s)", len(problems), report.Checked))
}

// WriteText prints a summary line, then each broken fixture with its problem.
func (r *VerifyResult) WriteText(w io.Writer) error {
	if r.Valid {
		_, err := fmt.Fprintf(w, "✓ %d fixture(s) valid\n", r.Checked)
		return err
	}
	var buf strings.Builder
	buf.WriteString("✗ Verification failed\n\n")
	for _, p := range r.Problems {
		fmt.Fprintf(&buf, "%s\n  %s: %s\n\n", p.Path, p.Problem.Code, p.Problem.Message)
	}
	_, err := io.WriteString(w, buf.String())
	return err
}
