package catalog

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chainpkg/chainpkg/internal/registry"
	"github.com/chainpkg/chainpkg/internal/units"
)

const maxDescription = 60

// RenderSummary writes one table row per match.
func RenderSummary(w io.Writer, res Results) error {
	if len(res.Matches) == 0 {
		if err := renderEmpty(w, res); err != nil {
			return err
		}
		return renderSkipped(w, res)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tKIND\tENDORSEMENTS\tDESCRIPTION")
	for _, m := range res.Matches {
		p := m.Package
		desc := p.Description
		if len(desc) > maxDescription {
			desc = desc[:maxDescription-3] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.Name, p.Version, dash(p.Kind), len(p.Endorsements), desc)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return renderSkipped(w, res)
}

// RenderDetailed writes a block of fields per match.
func RenderDetailed(w io.Writer, res Results) error {
	if len(res.Matches) == 0 {
		if err := renderEmpty(w, res); err != nil {
			return err
		}
		return renderSkipped(w, res)
	}
	for i, m := range res.Matches {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := renderPackage(w, m.Package); err != nil {
			return err
		}
	}
	return renderSkipped(w, res)
}

func renderPackage(w io.Writer, p registry.PackageMetadata) error {
	fmt.Fprintf(w, "%s@%s\n", p.Name, p.Version)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(label, value string) {
		fmt.Fprintf(tw, "  %s:\t%s\n", label, value)
	}
	row("Kind", dash(p.Kind))
	if p.Description != "" {
		row("Description", p.Description)
	}
	row("Publisher", p.Publisher)
	row("Content", p.ContentAddress)
	if p.TimestampSeconds > 0 {
		row("Published", p.PublishedAt().Format(time.RFC3339))
	}
	if len(p.Tags) > 0 {
		row("Tags", strings.Join(p.Tags, ", "))
	}
	row("Endorsements", fmt.Sprintf("%d", len(p.Endorsements)))
	row("Downloads", fmt.Sprintf("%d", p.DownloadCount))
	row("Tips", units.Display(p.TotalTips))
	for _, opt := range []struct {
		label string
		value *string
	}{
		{"Homepage", p.Homepage},
		{"Repository", p.Repository},
		{"License", p.License},
	} {
		if opt.value != nil {
			row(opt.label, *opt.value)
		}
	}
	return tw.Flush()
}

func renderEmpty(w io.Writer, res Results) error {
	msg := "No packages found"
	if res.Query != "" {
		msg += fmt.Sprintf(" matching %q", res.Query)
	}
	_, err := fmt.Fprintln(w, msg)
	return err
}

func renderSkipped(w io.Writer, res Results) error {
	if res.Skipped == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "(%d malformed registry entries skipped)\n", res.Skipped)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
