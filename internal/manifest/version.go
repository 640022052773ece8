package manifest

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/chainpkg/chainpkg/internal/errs"
)

// DefaultVersion is published when neither the caller nor Move.toml names
// a version.
const DefaultVersion = "1.0.0"

// ValidateVersion accepts exactly MAJOR.MINOR.PATCH: three dot-separated
// non-negative integers without leading zeros, pre-release or build parts.
func ValidateVersion(v string) error {
	sv, err := semver.StrictNewVersion(v)
	if err != nil || sv.Prerelease() != "" || sv.Metadata() != "" {
		return errs.New(errs.KindValidation,
			"invalid version %q: expected MAJOR.MINOR.PATCH (e.g. 1.0.0)", v).With("version", v)
	}
	return nil
}

// ResolveVersion applies the version precedence: explicit, then Move.toml,
// then DefaultVersion. The chosen version is validated.
func ResolveVersion(explicit, fromManifest string) (string, error) {
	v := explicit
	if v == "" {
		v = fromManifest
	}
	if v == "" {
		v = DefaultVersion
	}
	if err := ValidateVersion(v); err != nil {
		return "", err
	}
	return v, nil
}

// CompareVersions compares two versions using semver, tolerating a leading
// "v". It returns -1, 0 or 1.
func CompareVersions(a, b string) (int, error) {
	av, err := parseSemver(a)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", a, err)
	}
	bv, err := parseSemver(b)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", b, err)
	}
	return av.Compare(bv), nil
}

func parseSemver(version string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(version, "v"))
}
