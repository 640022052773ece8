// Package wallet creates, imports and selects the key pairs stored in the
// configuration document, and loads them as signers for one operation.
package wallet

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/logging"
)

// Chain is the subset of the ledger client the manager needs.
type Chain interface {
	Balance(ctx context.Context, addr string) (uint64, error)
	Fund(ctx context.Context, addr string, amount uint64) error
}

// Info is the public projection of a stored wallet.
type Info struct {
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	PublicKey     string    `json:"publicKey,omitempty"`
	IsDefault     bool      `json:"isDefault"`
	CreatedAt     time.Time `json:"createdAt"`
	HasPrivateKey bool      `json:"hasPrivateKey"`
}

// Created is the outcome of Create. Mnemonic is shown to the user once and
// is not stored.
type Created struct {
	Info
	Mnemonic       string `json:"mnemonic"`
	Funded         bool   `json:"funded"`
	FundingWarning string `json:"fundingWarning,omitempty"`
}

// Manager wraps the config store's wallet records.
type Manager struct {
	store *config.Store
	chain Chain
	log   *zap.Logger
	now   func() time.Time
}

// New returns a manager. chain may be nil when no ledger access is needed.
func New(store *config.Store, chain Chain, log *zap.Logger) *Manager {
	return &Manager{store: store, chain: chain, log: logging.OrNop(log), now: time.Now}
}

// Create generates a key pair from a fresh recovery phrase and stores it.
// On a non-production network with a faucet it then requests a funding
// grant; a failed grant is a warning on the result.
func (m *Manager) Create(ctx context.Context, name string) (*Created, error) {
	mnemonic, err := NewMnemonic()
	if err != nil {
		return nil, err
	}
	key, err := KeyFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	acct := NewAccount(name, key)
	if err := m.store.AddWallet(m.record(acct)); err != nil {
		return nil, err
	}
	rec, err := m.store.Wallet(name)
	if err != nil {
		return nil, err
	}
	out := &Created{Info: infoOf(rec), Mnemonic: mnemonic}

	network := m.store.CurrentNetwork()
	if network.Production || network.FaucetURL == "" || m.chain == nil {
		return out, nil
	}
	grant := m.store.Fees().FaucetGrant
	if err := m.chain.Fund(ctx, acct.Address(), grant); err != nil {
		m.log.Warn("faucet funding failed",
			zap.String("wallet", name),
			zap.String("network", network.Name),
			zap.Error(err))
		out.FundingWarning = fmt.Sprintf("funding from the %s faucet failed: %v", network.Name, err)
		return out, nil
	}
	out.Funded = true
	return out, nil
}

// Import stores an existing key given as a hex private key or a recovery
// phrase. No funding is requested.
func (m *Manager) Import(name, material string) (*Info, error) {
	key, err := ParseKeyMaterial(material)
	if err != nil {
		return nil, err
	}
	acct := NewAccount(name, key)
	if err := m.store.AddWallet(m.record(acct)); err != nil {
		return nil, err
	}
	rec, err := m.store.Wallet(name)
	if err != nil {
		return nil, err
	}
	info := infoOf(rec)
	return &info, nil
}

// Show returns the named wallet, or the default when name is empty.
func (m *Manager) Show(name string) (*Info, error) {
	rec, err := m.resolve(name)
	if err != nil {
		return nil, err
	}
	info := infoOf(rec)
	return &info, nil
}

// List returns every stored wallet.
func (m *Manager) List() []Info {
	recs := m.store.Wallets()
	out := make([]Info, 0, len(recs))
	for _, r := range recs {
		out = append(out, infoOf(r))
	}
	return out
}

// Remove deletes the named wallet.
func (m *Manager) Remove(name string) error {
	return m.store.RemoveWallet(name)
}

// Use makes name the default wallet.
func (m *Manager) Use(name string) error {
	return m.store.SetDefaultWallet(name)
}

// Account loads the signer for name, or for the default wallet when name is
// empty.
func (m *Manager) Account(name string) (*Account, error) {
	rec, err := m.resolve(name)
	if err != nil {
		return nil, err
	}
	if rec.PrivateKey == "" {
		return nil, errs.New(errs.KindConfig, "wallet %q has no private key", rec.Name).With("wallet", rec.Name)
	}
	key, err := ParsePrivateKey(rec.PrivateKey)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "wallet %q holds an unreadable key", rec.Name).With("wallet", rec.Name)
	}
	return NewAccount(rec.Name, key), nil
}

// Balance returns the on-chain balance of the named (or default) wallet.
func (m *Manager) Balance(ctx context.Context, name string) (uint64, error) {
	if m.chain == nil {
		return 0, errs.New(errs.KindInternal, "wallet manager has no ledger client")
	}
	rec, err := m.resolve(name)
	if err != nil {
		return 0, err
	}
	return m.chain.Balance(ctx, rec.Address)
}

func (m *Manager) resolve(name string) (config.WalletRecord, error) {
	if name == "" {
		return m.store.DefaultWallet()
	}
	return m.store.Wallet(name)
}

func (m *Manager) record(a *Account) config.WalletRecord {
	return config.WalletRecord{
		Name:       a.Name(),
		Address:    a.Address(),
		PublicKey:  a.PublicKeyHex(),
		PrivateKey: a.privateKeyHex(),
		CreatedAt:  m.now().UTC(),
	}
}

func infoOf(r config.WalletRecord) Info {
	return Info{
		Name:          r.Name,
		Address:       r.Address,
		PublicKey:     r.PublicKey,
		IsDefault:     r.IsDefault,
		CreatedAt:     r.CreatedAt,
		HasPrivateKey: r.PrivateKey != "",
	}
}
