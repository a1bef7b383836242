package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/strelka-go/backend/types"
)

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the backend version",
		Action: func(c *cli.Context) error {
			fmt.Printf("strelka-backend %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}
