// Package manifest reads the two files that describe a package directory:
// the Move.toml build manifest, which carries the package name and version,
// and the optional chainpkg.yaml, which carries registry metadata
// (description, kind, tags, links) and is validated against an embedded JSON
// Schema.
package manifest
