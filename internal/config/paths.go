package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainpkg/chainpkg/internal/branding"
)

const fileName = "config.json"

// Permission constants for the home directory and secret-bearing files.
const (
	DirPerm  os.FileMode = 0700
	FilePerm os.FileMode = 0600
)

// Dir returns the chainpkg home directory (~/.chainpkg/). The CHAINPKG_HOME
// environment variable overrides it.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the default configuration document path.
func FilePath() string {
	return filepath.Join(Dir(), fileName)
}

// CacheDir returns the directory used for derived, disposable data.
func CacheDir() string {
	return filepath.Join(Dir(), "cache")
}

// EnsureDir creates dir with owner-only permissions if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}
