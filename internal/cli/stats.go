package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/units"
)

func newStatsCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show registry totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			st, err := a.Registry.Stats(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if asJSON {
				return p.json(st)
			}
			return p.table([]string{"NETWORK", a.Network.Name}, [][]string{
				{"Packages", strconv.FormatUint(st.TotalPackages, 10)},
				{"Endorsers", strconv.FormatUint(st.TotalEndorsers, 10)},
				{"Downloads", strconv.FormatUint(st.TotalDownloads, 10)},
				{"Tips", units.Display(st.TotalTips)},
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}
