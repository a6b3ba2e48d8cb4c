// Command easyfix inspects the fixtures recorded by the easyfix harness.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/easyfix/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		// Flag and argument errors from cobra are not reported by the
		// commands themselves.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
}
