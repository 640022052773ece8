package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/schema"
)

//go:embed schema/config.schema.json
var schemaBytes []byte

var configSchema = schema.New("config.schema.json", schemaBytes)

// Validate checks d against the embedded schema and the cross-field rules
// the schema cannot express. Failures are ConfigErrors listing every issue.
func Validate(d *Document) error {
	found, err := configSchema.Check(d)
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "validating config document")
	}
	issues := make([]string, 0, len(found))
	for _, is := range found {
		issues = append(issues, is.String())
	}
	if d.Network != "" {
		if _, ok := d.Networks[d.Network]; !ok {
			issues = append(issues, fmt.Sprintf("/network: current network %q is not defined", d.Network))
		}
	}
	seen := make(map[string]bool, len(d.Wallets))
	for _, w := range d.Wallets {
		if seen[w.Name] {
			issues = append(issues, fmt.Sprintf("/wallets: duplicate wallet name %q", w.Name))
		}
		seen[w.Name] = true
	}

	if len(issues) > 0 {
		return errs.New(errs.KindConfig, "invalid configuration: %s", strings.Join(issues, "; ")).
			With("issues", len(issues))
	}
	return nil
}
