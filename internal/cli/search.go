package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chainpkg/chainpkg/internal/catalog"
)

type searchOptions struct {
	filters catalog.Filters
	details bool
	refresh bool
	json    bool
}

func newSearchCmd(g *globals) *cobra.Command {
	var o searchOptions
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the package catalog",
		Long: `Search packages registered on the selected network.

The query is matched approximately against package names, descriptions
and tags; closer matches rank first. Without a query every package is
listed. The catalog is cached per network for a few minutes; use
--refresh to read it from the registry again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			res, err := a.Catalog().Search(cmd.Context(), strings.Join(args, " "), o.filters, o.refresh)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case o.json:
				return newPrinter(cmd).json(res)
			case o.details:
				return catalog.RenderDetailed(out, *res)
			default:
				return catalog.RenderSummary(out, *res)
			}
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.filters.Kind, "package-type", "t", "", "Only packages of this kind (library, token, defi, ...)")
	f.IntVar(&o.filters.MinEndorsements, "min-endorsements", 0, "Only packages with at least this many endorsements")
	f.IntVarP(&o.filters.Limit, "limit", "l", 0, "Maximum number of results (0 for all)")
	f.BoolVarP(&o.details, "details", "d", false, "Show full package details")
	f.BoolVar(&o.refresh, "refresh", false, "Bypass the catalog cache")
	f.BoolVar(&o.json, "json", false, "Output in JSON format")
	return cmd
}
