package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/branding"
)

func newVersionCmd(g *globals) *cobra.Command {
	var (
		short  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, g.build.Version)
				return nil
			}
			if asJSON {
				return newPrinter(cmd).json(g.build)
			}
			fmt.Fprintf(out, "%s version %s (commit: %s, built: %s)\n",
				branding.CLIName(), g.build.Version, g.build.Commit, g.build.Date)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print version number only")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version info as JSON")
	return cmd
}
