// Command actfuse fuses activation nodes into their dense producers.
package main

import (
	"os"

	"github.com/roach88/actfuse/internal/cli"
)

func main() {
	// Subcommands report their own errors; cobra prints flag and usage errors.
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
