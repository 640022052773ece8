package cli

import (
	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/api"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API. Every endpoint mirrors a command: POST /api/<command>
with a JSON body, and GET variants for search, wallet status and storage
status. Settings are read from CHAINPKG_API_* variables; --host and
--port override them. Paid actions require "confirm": true in the body.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := api.LoadSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				settings.Host = host
			}
			if cmd.Flags().Changed("port") {
				settings.Port = port
			}

			// Fail fast on a broken configuration.
			if _, err := g.open(); err != nil {
				return err
			}
			newPrinter(cmd).info("Serving on http://%s", settings.Addr())
			return api.New(settings, g.openNetwork, g.build.Version, g.log).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides CHAINPKG_API_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides CHAINPKG_API_PORT)")
	return cmd
}
