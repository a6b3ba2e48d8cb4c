package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/easyfix/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file; defaults to $EASYFIX_CONFIG

	// Logger is configured by the root command before any subcommand runs.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the easyfix CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	cmd := &cobra.Command{
		Use:   "easyfix",
		Short: "easyfix - record and replay fixtures for asynchronous calls",
		Long: `Inspect the fixtures recorded by easyfix.

Fixtures are written by tests running with TEST_MODE=capture and read back
with TEST_MODE=replay. These commands list, print, verify and locate them.`,
		SilenceErrors: true, // main prints errors the commands did not report
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.Logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	addGlobalFlags(cmd.PersistentFlags(), opts)

	// Add subcommands
	cmd.AddCommand(NewLsCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))

	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet, opts *RootOptions) {
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	fs.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	fs.StringVar(&opts.Config, "config", "", "config file (default $"+config.EnvConfig+")")
}

// newLogger returns a text logger on w, at Debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// fixtureDir resolves the fixture directory: the positional argument, then
// the config file's directory, then the default.
func fixtureDir(opts *RootOptions, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if opts.Config != "" {
		f, err := config.Load(opts.Config)
		if err != nil {
			return "", err
		}
		if f.Directory != "" {
			return f.Directory, nil
		}
		return config.DefaultDirectory, nil
	}
	f, err := config.FromEnv()
	if err != nil {
		return "", err
	}
	return f.Directory, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
