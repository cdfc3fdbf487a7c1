// Command hybridsr discovers closed-form expressions for gridded fields.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/hybridsr/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Subcommands silence cobra's error printing; stdout may carry
		// JSON, so the error goes to stderr.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
