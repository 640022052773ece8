// Package apptest builds a throwaway chainpkg environment: a fake ledger
// node, a configuration document pointing at it, a local content store and
// a funded default wallet.
package apptest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainpkg/chainpkg/internal/app"
	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/ledger/ledgertest"
	"github.com/chainpkg/chainpkg/internal/wallet"
)

// Network is the profile name the environment selects.
const Network = "fake"

// Mnemonic is the standard BIP-39 test phrase used for the default wallet.
const Mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// Env is a prepared environment.
type Env struct {
	Node       *ledgertest.Node
	Home       string
	ConfigPath string
	Wallet     wallet.Info
}

// New prepares an environment under t.TempDir and points CHAINPKG_HOME at
// it. The default wallet holds 10 publish fees.
func New(t *testing.T) *Env {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CHAINPKG_HOME", home)
	node := ledgertest.New(t)

	path := filepath.Join(home, "config.json")
	store := config.NewStore(path)
	require.NoError(t, store.Load())
	require.NoError(t, store.PutNetwork(config.NetworkProfile{
		Name:      Network,
		RPCURL:    node.URL(),
		FaucetURL: node.FaucetURL(),
	}))
	require.NoError(t, store.SetCurrentNetwork(Network))
	require.NoError(t, store.SetStorage(config.StorageConfig{
		Provider:  config.ProviderLocal,
		LocalPath: filepath.Join(home, "cas"),
	}))

	info, err := wallet.New(store, nil, nil).Import("main", Mnemonic)
	require.NoError(t, err)
	node.SetBalance(info.Address, 10*node.PublishFee)

	return &Env{Node: node, Home: home, ConfigPath: path, Wallet: *info}
}

// Options returns app options with fast ledger polling.
func (e *Env) Options() app.Options {
	return app.Options{
		ConfigPath: e.ConfigPath,
		Ledger: ledger.Options{
			ConfirmTimeout:  time.Second,
			PollInterval:    2 * time.Millisecond,
			MaxPollInterval: 10 * time.Millisecond,
			Retries:         -1,
		},
	}
}

// Open opens an App on the environment.
func (e *Env) Open(t *testing.T) *app.App {
	t.Helper()
	a, err := app.Open(e.Options())
	require.NoError(t, err)
	return a
}

// WritePackage writes a minimal publishable package named name and returns
// its directory.
func WritePackage(t *testing.T, name, version string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sources"), 0o755))
	move := "[package]\nname = \"" + name + "\"\nversion = \"" + version + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Move.toml"), []byte(move), 0o644))
	meta := "description: test package " + name + "\nkind: library\ntags:\n  - test\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chainpkg.yaml"), []byte(meta), 0o644))
	src := "module " + name + "::" + name + " {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources", name+".move"), []byte(src), 0o644))
	return dir
}
