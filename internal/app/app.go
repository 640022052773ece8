// Package app wires the configuration store, ledger, registry, wallets and
// storage into the pipelines. The CLI and the HTTP API both build their
// commands on an App.
package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/catalog"
	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/endorse"
	"github.com/chainpkg/chainpkg/internal/install"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/logging"
	"github.com/chainpkg/chainpkg/internal/publish"
	"github.com/chainpkg/chainpkg/internal/registry"
	"github.com/chainpkg/chainpkg/internal/storage"
	"github.com/chainpkg/chainpkg/internal/wallet"

	// Storage providers register themselves with storage.Open.
	_ "github.com/chainpkg/chainpkg/internal/storage/localfs"
	_ "github.com/chainpkg/chainpkg/internal/storage/pinata"
)

// Options configures Open.
type Options struct {
	ConfigPath string // "" uses config.FilePath()
	Network    string // per-process override of the selected network
	Logger     *zap.Logger

	// Ledger supplies timing and transport settings. Its RPCURL and
	// FaucetURL are taken from the selected network profile.
	Ledger ledger.Options

	// CatalogCache enables the on-disk catalog cache.
	CatalogCache bool
}

// App is one resolved environment: a configuration document, a network and
// the clients bound to it.
type App struct {
	Store    *config.Store
	Network  config.NetworkProfile
	Chain    *ledger.Client
	Registry *registry.Client
	Wallets  *wallet.Manager
	Log      *zap.Logger

	catalogCache bool
}

// Open loads the configuration and binds clients to the selected network.
func Open(opts Options) (*App, error) {
	log := logging.OrNop(opts.Logger)
	store, err := config.Open(opts.ConfigPath, log)
	if err != nil {
		return nil, err
	}
	if err := store.UseNetwork(opts.Network); err != nil {
		return nil, err
	}
	network := store.CurrentNetwork()

	lo := opts.Ledger
	lo.RPCURL = network.RPCURL
	lo.FaucetURL = network.FaucetURL
	if lo.Logger == nil {
		lo.Logger = log
	}
	chain := ledger.New(lo)

	return &App{
		Store:        store,
		Network:      network,
		Chain:        chain,
		Registry:     registry.New(chain, network.RegistryAddress, log),
		Wallets:      wallet.New(store, chain, log),
		Log:          log,
		catalogCache: opts.CatalogCache,
	}, nil
}

// Storage opens the configured content store.
func (a *App) Storage() (*storage.Client, error) {
	return storage.Open(a.Store.StorageCredentials(), a.Log)
}

// Signer returns the named wallet, or the default one when name is empty.
func (a *App) Signer(name string) (*wallet.Account, error) {
	return a.Wallets.Account(name)
}

// Publisher returns a publish pipeline on the selected network.
func (a *App) Publisher(confirm publish.Confirmer, observer publish.Observer) (*publish.Pipeline, error) {
	store, err := a.Storage()
	if err != nil {
		return nil, err
	}
	return publish.New(publish.Deps{
		Registry: a.Registry,
		Storage:  store,
		Confirm:  confirm,
		Observer: observer,
		Logger:   a.Log,
		Fee:      a.Store.Fees().Publish,
		Network:  a.Network.Name,
	}), nil
}

// Installer returns an install pipeline on the selected network.
func (a *App) Installer() (*install.Installer, error) {
	store, err := a.Storage()
	if err != nil {
		return nil, err
	}
	return install.New(a.Registry, store, a.Log), nil
}

// Catalog returns the package catalog, cached per network when enabled.
func (a *App) Catalog() *catalog.Catalog {
	var cache *catalog.Cache
	if a.catalogCache {
		cache = catalog.NewCache(catalog.DefaultCachePath(a.Network.Name), a.Network.Name, catalog.DefaultTTL)
	}
	return catalog.New(a.Registry, cache, a.Log)
}

// Endorsements returns the endorse, register and tip actions.
func (a *App) Endorsements(confirm publish.Confirmer) *endorse.Service {
	return endorse.New(a.Registry, confirm, a.Store.Fees(), a.Network.Name, a.Log)
}

// InitRegistry initializes registry storage, signed by the named wallet.
func (a *App) InitRegistry(ctx context.Context, walletName string) (*registry.TransactionResult, error) {
	signer, err := a.Signer(walletName)
	if err != nil {
		return nil, err
	}
	return a.Registry.Initialize(ctx, signer)
}

// Status summarizes the selected network and default wallet.
type Status struct {
	Network  string       `json:"network"`
	RPCURL   string       `json:"rpcUrl"`
	Registry string       `json:"registry"`
	Wallet   *wallet.Info `json:"wallet,omitempty"`
	Balance  *uint64      `json:"balance,omitempty"`
	Wallets  int          `json:"wallets"`
}

// WalletStatus reports the default wallet and its balance. A missing
// default wallet is not an error; an unreachable node is.
func (a *App) WalletStatus(ctx context.Context) (*Status, error) {
	st := &Status{
		Network:  a.Network.Name,
		RPCURL:   a.Network.RPCURL,
		Registry: a.Registry.Address(),
		Wallets:  len(a.Wallets.List()),
	}
	info, err := a.Wallets.Show("")
	if err != nil {
		return st, nil
	}
	st.Wallet = info
	bal, err := a.Registry.Balance(ctx, info.Address)
	if err != nil {
		return nil, err
	}
	st.Balance = &bal
	return st, nil
}

// StorageStatus describes the configured content store.
type StorageStatus struct {
	Provider  string `json:"provider"`
	Reachable bool   `json:"reachable"`
}

// StorageStatus opens the content store and checks that it answers.
func (a *App) StorageStatus(ctx context.Context) (*StorageStatus, error) {
	store, err := a.Storage()
	if err != nil {
		return nil, err
	}
	return &StorageStatus{
		Provider:  store.Provider(),
		Reachable: store.TestConnection(ctx),
	}, nil
}
