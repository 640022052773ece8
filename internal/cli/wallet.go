package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/units"
	"github.com/chainpkg/chainpkg/internal/wallet"
)

func newWalletCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage signing wallets",
	}
	cmd.AddCommand(
		newWalletCreateCmd(g),
		newWalletListCmd(g),
		newWalletShowCmd(g),
		newWalletRemoveCmd(g),
		newWalletUseCmd(g),
		newWalletImportCmd(g),
	)
	return cmd
}

func newWalletCreateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a wallet and print its recovery phrase",
		Long: `Create a wallet with a fresh 12-word recovery phrase. The phrase is
printed once; store it safely. On networks with a faucet the new wallet
is funded automatically.`,
		Args: exactArgs(1, "a wallet name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			created, err := a.Wallets.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			p.success("Created wallet %s (%s)", created.Name, created.Address)
			p.warn("Recovery phrase, shown only once:")
			fmt.Fprintln(cmd.OutOrStdout(), created.Mnemonic)
			switch {
			case created.Funded:
				p.info("Funded from the %s faucet", a.Network.Name)
			case created.FundingWarning != "":
				p.warn("%s", created.FundingWarning)
			}
			return nil
		},
	}
}

func newWalletListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			list := a.Wallets.List()
			p := newPrinter(cmd)
			if len(list) == 0 {
				p.info("No wallets. Create one with 'wallet create <name>'.")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, w := range list {
				def := ""
				if w.IsDefault {
					def = "*"
				}
				rows = append(rows, []string{def, w.Name, w.Address, w.CreatedAt.Format("2006-01-02")})
			}
			return p.table([]string{"DEFAULT", "NAME", "ADDRESS", "CREATED"}, rows)
		},
	}
}

func newWalletShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show a wallet and its balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			info, err := a.Wallets.Show(name)
			if err != nil {
				return err
			}
			rows := walletRows(info)
			p := newPrinter(cmd)
			if bal, err := a.Wallets.Balance(cmd.Context(), info.Name); err != nil {
				p.warn("balance unavailable: %v", err)
			} else {
				rows = append(rows, []string{"Balance", units.Display(bal) + " (" + a.Network.Name + ")"})
			}
			return p.table([]string{"FIELD", "VALUE"}, rows)
		},
	}
}

func walletRows(info *wallet.Info) [][]string {
	return [][]string{
		{"Name", info.Name},
		{"Address", info.Address},
		{"Public key", info.PublicKey},
		{"Default", strconv.FormatBool(info.IsDefault)},
		{"Created", info.CreatedAt.Format("2006-01-02 15:04:05")},
	}
}

func newWalletRemoveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a wallet",
		Args:  exactArgs(1, "a wallet name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			if err := a.Wallets.Remove(args[0]); err != nil {
				return err
			}
			newPrinter(cmd).success("Removed wallet %s", args[0])
			return nil
		},
	}
}

func newWalletUseCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Make a wallet the default",
		Args:  exactArgs(1, "a wallet name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			if err := a.Wallets.Use(args[0]); err != nil {
				return err
			}
			newPrinter(cmd).success("Default wallet is now %s", args[0])
			return nil
		},
	}
}

func newWalletImportCmd(g *globals) *cobra.Command {
	var material string
	cmd := &cobra.Command{
		Use:   "import <name>",
		Short: "Import a wallet from a private key or recovery phrase",
		Long: `Import a wallet from a hex private key or a 12/24-word recovery phrase.
Without --private-key the key material is read from standard input
(hidden when reading from a terminal).`,
		Args: exactArgs(1, "a wallet name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd)
			if material == "" {
				var err error
				if material, err = readSecret(cmd.InOrStdin(), p, "Private key or recovery phrase"); err != nil {
					return err
				}
			}
			a, err := g.open()
			if err != nil {
				return err
			}
			info, err := a.Wallets.Import(args[0], material)
			if err != nil {
				return err
			}
			p.success("Imported wallet %s (%s)", info.Name, info.Address)
			return nil
		},
	}
	cmd.Flags().StringVar(&material, "private-key", "", "Hex private key or recovery phrase")
	return cmd
}
