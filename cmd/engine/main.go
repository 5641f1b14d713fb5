package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "engine",
		Usage:   "Decision Core paper-trading engine",
		Version: version,
		Commands: []*cli.Command{
			runCommand(),
			statusCommand(),
			backfillCommand(),
			replayCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeOf(err))
	}
}
