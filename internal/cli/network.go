package cli

import (
	"github.com/spf13/cobra"
)

func newNetworkCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "List and select ledger networks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List network profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			rows := [][]string{}
			for _, n := range a.Store.Networks() {
				current := ""
				if n.Name == a.Network.Name {
					current = "*"
				}
				registry := n.RegistryAddress
				if registry == "" {
					registry = "-"
				}
				rows = append(rows, []string{current, n.Name, n.RPCURL, registry})
			}
			return newPrinter(cmd).table([]string{"CURRENT", "NAME", "RPC", "REGISTRY"}, rows)
		},
	}, &cobra.Command{
		Use:   "use <name>",
		Short: "Select the default network",
		Args:  exactArgs(1, "a network name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			if err := a.Store.SetCurrentNetwork(args[0]); err != nil {
				return err
			}
			newPrinter(cmd).success("Now using network %s", args[0])
			return nil
		},
	})
	return cmd
}
