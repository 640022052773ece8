package manifest

// File names looked up in a package directory.
const (
	MoveFile     = "Move.toml"
	MetadataFile = "chainpkg.yaml"
)

// MoveManifest is the subset of Move.toml the package manager reads.
type MoveManifest struct {
	Package      MovePackage       `toml:"package"`
	Addresses    map[string]string `toml:"addresses,omitempty"`
	Dependencies map[string]any    `toml:"dependencies,omitempty"`
}

// MovePackage is the [package] table.
type MovePackage struct {
	Name    string   `toml:"name"`
	Version string   `toml:"version,omitempty"`
	Authors []string `toml:"authors,omitempty"`
	License string   `toml:"license,omitempty"`
}

// Metadata is the content of chainpkg.yaml.
type Metadata struct {
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Kind        string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Homepage    string   `yaml:"homepage,omitempty" json:"homepage,omitempty"`
	Repository  string   `yaml:"repository,omitempty" json:"repository,omitempty"`
	License     string   `yaml:"license,omitempty" json:"license,omitempty"`
}

// Package is everything the publisher extracts from a package directory.
type Package struct {
	Dir      string
	Move     *MoveManifest
	Metadata *Metadata // nil when chainpkg.yaml is absent

	// Warnings lists non-fatal metadata schema issues.
	Warnings []ValidationIssue
}

// Name returns the package name from Move.toml.
func (p *Package) Name() string { return p.Move.Package.Name }

// License prefers the metadata license over Move.toml.
func (p *Package) License() string {
	if p.Metadata != nil && p.Metadata.License != "" {
		return p.Metadata.License
	}
	return p.Move.Package.License
}
