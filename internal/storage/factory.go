package storage

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/errs"
)

// Opener builds a provider from the effective storage configuration.
// Providers register themselves through RegisterOpener so this package does
// not import them.
type Opener func(cfg config.StorageConfig, log *zap.Logger) (Provider, error)

var openers = map[string]Opener{}

// RegisterOpener makes a provider available under name. It panics on a
// duplicate name.
func RegisterOpener(name string, open Opener) {
	if _, dup := openers[name]; dup {
		panic("storage: duplicate provider " + name)
	}
	openers[name] = open
}

// Open builds a Client for cfg. An empty provider means pinata.
func Open(cfg config.StorageConfig, log *zap.Logger) (*Client, error) {
	name := cfg.Provider
	if name == "" {
		name = config.ProviderPinata
	}
	open, ok := openers[name]
	if !ok {
		return nil, errs.New(errs.KindConfig, "unknown storage provider %q", name).With("provider", name)
	}
	p, err := open(cfg, log)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "configuring %s storage", name).With("provider", name)
	}
	return New(p, log), nil
}

// DefaultLocalPath is where the local provider keeps objects when the
// configuration names no path.
func DefaultLocalPath() string {
	return filepath.Join(config.Dir(), "cas")
}
