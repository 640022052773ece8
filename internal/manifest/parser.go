package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"

	"github.com/chainpkg/chainpkg/internal/errs"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// ValidateName checks a registry package name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return errs.New(errs.KindValidation,
			"invalid package name %q: use a letter followed by letters, digits, '-' or '_' (max 64)", name).
			With("name", name)
	}
	return nil
}

// ParseMove decodes Move.toml content. path is used in error messages.
func ParseMove(data []byte, path string) (*MoveManifest, error) {
	var m MoveManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "parsing %s", path).With("path", path)
	}
	return &m, nil
}

// ReadMove reads dir/Move.toml.
func ReadMove(dir string) (*MoveManifest, error) {
	path := filepath.Join(dir, MoveFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.New(errs.KindValidation, "no %s found in %s", MoveFile, dir).With("dir", dir)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "reading %s", path)
	}
	return ParseMove(data, path)
}

// ReadMetadata reads dir/chainpkg.yaml. It returns nil without error when
// the file does not exist. Schema issues are returned alongside the parsed
// metadata; only unreadable or malformed YAML is an error.
func ReadMetadata(dir string) (*Metadata, []ValidationIssue, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindValidation, err, "reading %s", path)
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, nil, errs.Wrap(errs.KindValidation, err, "parsing %s", path).With("path", path)
	}
	result, err := Validate(data)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindValidation, err, "validating %s", path).With("path", path)
	}
	return &md, result.Issues, nil
}

// Load reads the package in dir: the directory must exist and contain a
// Move.toml with a valid name. The version is returned as written and may
// be empty.
func Load(dir string) (*Package, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errs.New(errs.KindValidation, "package directory %s does not exist", dir).With("dir", dir)
	}
	move, err := ReadMove(dir)
	if err != nil {
		return nil, err
	}
	if move.Package.Name == "" {
		return nil, errs.New(errs.KindValidation, "%s has no [package] name", MoveFile).With("dir", dir)
	}
	if err := ValidateName(move.Package.Name); err != nil {
		return nil, err
	}
	md, issues, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}
	return &Package{Dir: dir, Move: move, Metadata: md, Warnings: issues}, nil
}
