package cli

import (
	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/units"
)

type endorseOptions struct {
	version string
	stake   string
	wallet  string
	yes     bool
}

func newEndorseCmd(g *globals) *cobra.Command {
	var o endorseOptions
	cmd := &cobra.Command{
		Use:   "endorse <name> | register [stake]",
		Short: "Endorse a package, or register as an endorser",
		Long: `Endorse a package version with the signing wallet. Only registered
endorsers may endorse; register first with:

  chainpkg endorse register [stake]

The stake defaults to the network minimum. Amounts are in whole tokens
(for example 1.5).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			signer, err := a.Signer(o.wallet)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			svc := a.Endorsements(confirmer(cmd.InOrStdin(), p, o.yes))

			if args[0] != "register" {
				if len(args) > 1 {
					return errs.New(errs.KindValidation, "endorse takes one package name")
				}
				out, err := svc.Endorse(cmd.Context(), signer, args[0], o.version)
				if err != nil {
					return err
				}
				return p.outcome(out.State, out.Message)
			}

			stake := a.Store.Fees().MinEndorserStake
			raw := o.stake
			if len(args) == 2 {
				raw = args[1]
			}
			if raw != "" {
				if stake, err = parseAmount(raw); err != nil {
					return err
				}
			}
			out, err := svc.RegisterEndorser(cmd.Context(), signer, stake)
			if err != nil {
				return err
			}
			return p.outcome(out.State, out.Message)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.version, "version", "", "Version to endorse (defaults to the latest)")
	f.StringVar(&o.stake, "stake-amount", "", "Stake for register, in tokens")
	f.StringVarP(&o.wallet, "wallet", "w", "", "Signing wallet")
	f.BoolVarP(&o.yes, "yes", "y", false, "Approve the fee without prompting")
	return cmd
}

func newTipCmd(g *globals) *cobra.Command {
	var o endorseOptions
	cmd := &cobra.Command{
		Use:   "tip <name> <amount>",
		Short: "Send a tip to a package publisher",
		Args:  exactArgs(2, "a package name and an amount"),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			a, err := g.open()
			if err != nil {
				return err
			}
			signer, err := a.Signer(o.wallet)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			out, err := a.Endorsements(confirmer(cmd.InOrStdin(), p, o.yes)).
				Tip(cmd.Context(), signer, args[0], o.version, amount)
			if err != nil {
				return err
			}
			return p.outcome(out.State, out.Message)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.version, "version", "", "Version to tip (defaults to the latest)")
	f.StringVarP(&o.wallet, "wallet", "w", "", "Signing wallet")
	f.BoolVarP(&o.yes, "yes", "y", false, "Approve the fee without prompting")
	return cmd
}

func parseAmount(s string) (uint64, error) {
	v, err := units.Parse(s)
	if err != nil {
		return 0, errs.Wrap(errs.KindValidation, err, "invalid amount %q", s)
	}
	return v, nil
}
