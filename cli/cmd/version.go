package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/types"
)

// VersionCommand returns the version command. All services share one
// version; commit is injected at build time.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "assay %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}
