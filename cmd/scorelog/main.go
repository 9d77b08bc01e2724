// Command scorelog records, syncs and replays game logs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scorelog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
