package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// LsOptions holds flags for the ls command.
type LsOptions struct {
	Prefix string
}

// NewLsCommand creates the ls command.
func NewLsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LsOptions{}

	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List recorded fixtures",
		Long: `List the fixtures under a directory with the protocol each one replays.

The directory defaults to the config file's directory, then test/data.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only list fixtures with this key prefix")

	return cmd
}

func runLs(rootOpts *RootOptions, opts *LsOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	dir, err := fixtureDir(rootOpts, args)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err.Error(), nil)
	}

	result, err := LoadFixtures(dir, opts.Prefix)
	if err != nil {
		return loadFailure(formatter, err)
	}
	rootOpts.Logger.Debug("listed fixtures", "dir", dir, "count", len(result.Fixtures))
	formatter.VerboseLog("%d fixture(s) in %s", len(result.Fixtures), dir)

	return formatter.Emit(result)
}

// WriteText lists one fixture per line with the protocol it replays.
func (r *LoadResult) WriteText(w io.Writer) error {
	for _, f := range r.Fixtures {
		outcome := string(f.Outcome)
		if f.Problem != nil {
			outcome = "corrupt"
		}
		if _, err := fmt.Fprintf(w, "%-9s %s\n", outcome, f.Path); err != nil {
			return err
		}
	}
	return nil
}

// loadFailure reports an error from LoadFixtures.
func loadFailure(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return commandError(formatter, loadErr.Code, loadErr.Message, nil)
	}
	return commandError(formatter, ErrCodeGeneric, err.Error(), nil)
}
