// Package main provides the strelka-backend CLI entrypoint.
//
// The backend worker of a distributed file-scanning fleet: it leases scan
// requests from the shared coordinator, classifies and scans each file tree,
// and writes structured events back under the request's event key.
//
// Usage:
//
//	strelka-backend [--worker-config PATH]
//
// Running with no command is equivalent to `work`. Exits non-zero when the
// config cannot be found or the coordinator ping fails at startup.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/strelka-go/backend/cli/cmd"
	"github.com/strelka-go/backend/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	work := cmd.WorkCommand()

	app := &cli.App{
		Name:    "strelka-backend",
		Usage:   "File-scanning fleet backend worker",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:   work.Flags,
		Action:  work.Action,
		Commands: []*cli.Command{
			work,
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
