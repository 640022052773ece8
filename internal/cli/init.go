package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/scaffold"
)

// initRegistryTarget makes init set up the registry instead of a package.
const initRegistryTarget = "registry"

type initOptions struct {
	name     string
	author   string
	template string
	wallet   string
}

func newInitCmd(g *globals) *cobra.Command {
	var o initOptions
	cmd := &cobra.Command{
		Use:   "init [dir | registry]",
		Short: "Create a package, or initialize the registry",
		Long: `Create a new Move package in dir (default: the current directory) from
one of the templates: basic, token or defi. The directory must be empty
or absent.

"init registry" initializes the on-chain registry under the signing
wallet's account. It is needed once per deployment.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			if target == initRegistryTarget {
				return runInitRegistry(cmd, g, o.wallet)
			}
			return runScaffold(cmd, target, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.name, "name", "", "Package name (defaults to the directory name)")
	f.StringVar(&o.author, "author", "", "Author recorded in Move.toml")
	f.StringVar(&o.template, "template", scaffold.TemplateBasic, "Template: basic, token or defi")
	f.StringVarP(&o.wallet, "wallet", "w", "", "Signing wallet for init registry")
	return cmd
}

func runScaffold(cmd *cobra.Command, target string, o initOptions) error {
	name := o.name
	if name == "" {
		abs, err := filepath.Abs(target)
		if err != nil {
			return errs.Wrap(errs.KindValidation, err, "resolving %s", target)
		}
		name = filepath.Base(abs)
	}
	res, err := scaffold.Generate(o.template, scaffold.NewData(name, o.author), target)
	if err != nil {
		return err
	}
	p := newPrinter(cmd)
	for _, w := range res.Warnings {
		p.warn("%s", w)
	}
	p.success("Created %s package %s in %s", res.Template, name, res.OutputDir)
	for _, f := range res.Files {
		p.info("  %s", f)
	}
	return nil
}

func runInitRegistry(cmd *cobra.Command, g *globals, wallet string) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	res, err := a.InitRegistry(cmd.Context(), wallet)
	if err != nil {
		return err
	}
	p := newPrinter(cmd)
	switch {
	case res.Pending:
		p.warn("%s", res.StatusMessage)
	case !res.Success:
		return errs.New(errs.KindBlockchain, "transaction reverted: %s", res.StatusMessage).With("tx", res.TransactionID)
	default:
		p.success("Registry initialized on %s (transaction %s)", a.Network.Name, res.TransactionID)
	}
	return nil
}
