package cli

import (
	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/publish"
	"github.com/chainpkg/chainpkg/internal/units"
)

type publishOptions struct {
	path    string
	version string
	tags    []string
	wallet  string
	yes     bool
}

func newPublishCmd(g *globals) *cobra.Command {
	var o publishOptions
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a package to the registry",
		Long: `Publish the package in --package-path.

The package is validated, archived and uploaded to content storage. The
publishing fee is checked against the wallet balance and shown for
confirmation before the registry transaction is submitted. Once the
transaction is confirmed the registry entry is read back and compared
with the uploaded content address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.path, "package-path", "p", ".", "Package directory")
	f.StringVar(&o.version, "pkg-version", "", "Version to publish (defaults to Move.toml)")
	f.StringSliceVar(&o.tags, "tags", nil, "Comma-separated tags (override chainpkg.yaml)")
	f.StringVarP(&o.wallet, "wallet", "w", "", "Signing wallet (defaults to the default wallet)")
	f.BoolVarP(&o.yes, "yes", "y", false, "Approve the fee without prompting")
	return cmd
}

func runPublish(cmd *cobra.Command, g *globals, o publishOptions) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	signer, err := a.Signer(o.wallet)
	if err != nil {
		return err
	}
	p := newPrinter(cmd)
	pipeline, err := a.Publisher(confirmer(cmd.InOrStdin(), p, o.yes), p.progress())
	if err != nil {
		return err
	}

	var tags []string
	if cmd.Flags().Changed("tags") {
		tags = append([]string{}, o.tags...)
	}
	out, err := pipeline.Run(cmd.Context(), signer, publish.Options{Dir: o.path, Version: o.version, Tags: tags})
	if out != nil {
		for _, w := range out.Warnings {
			p.warn("%s", w)
		}
	}
	if err != nil {
		return err
	}
	if out.State == publish.Done {
		p.info("Content address: %s", out.ContentAddress)
		p.info("Fee paid: %s", units.Display(out.Fee))
		if out.Transaction != nil {
			p.info("Transaction: %s", out.Transaction.TransactionID)
		}
	}
	return p.outcome(out.State, out.Message)
}
