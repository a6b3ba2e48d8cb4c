package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/easyfix/internal/fixture"
)

// ShowResult is the JSON payload of the show command.
type ShowResult struct {
	Path    string          `json:"path"`
	Outcome fixture.Outcome `json:"outcome"`
	Record  *fixture.Record `json:"record"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <fixture>",
		Short: "Validate and print one fixture",
		Long: `Validate and print one fixture.

The argument is a fixture path, or a key such as IncStateNextTick-e1da8ae93c20
which is looked up in the fixture directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runShow(opts *RootOptions, target string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	path := target
	if !strings.HasSuffix(target, ".json") {
		dir, err := fixtureDir(opts, nil)
		if err != nil {
			return commandError(formatter, ErrCodeConfig, err.Error(), nil)
		}
		path = fixture.FixturePath(dir, target)
	}
	formatter.VerboseLog("Reading %s", path)

	fi := LoadFixture(path)
	if fi.Problem != nil {
		if fi.Problem.Code == ErrCodeNotFound {
			return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("fixture not found: %s", path), nil)
		}
		_ = formatter.Error(fi.Problem.Code, fi.Problem.Message, map[string]string{"path": path})
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", fi.Problem.Code, fi.Problem.Message))
	}

	return formatter.Emit(&ShowResult{Path: fi.Path, Outcome: fi.Outcome, Record: fi.Record})
}

// WriteText prints a header line followed by the fixture as it is stored.
func (r *ShowResult) WriteText(w io.Writer) error {
	data, err := fixture.Encode(r.Record)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# %s (%s)\n", r.Path, r.Outcome); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
