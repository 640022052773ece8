package cli

import (
	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/install"
)

func newInstallCmd(g *globals) *cobra.Command {
	var opts install.Options
	cmd := &cobra.Command{
		Use:   "install <name>",
		Short: "Install a package from the registry",
		Long: `Resolve a package in the registry, download its archive from content
storage and extract it to <output-dir>/<name>.

Without --version the latest registered version is installed.`,
		Args: exactArgs(1, "a package name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			installer, err := a.Installer()
			if err != nil {
				return err
			}
			res, err := installer.Install(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if res.Status == install.NotFound {
				return errs.New(errs.KindPackageNotFound, "%s", res.Message).With("network", a.Network.Name)
			}
			newPrinter(cmd).success("%s (%d files)", res.Message, res.Files)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Version, "version", "", "Version to install (defaults to the latest)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", ".", "Directory to install into")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Replace an existing installation")
	return cmd
}
