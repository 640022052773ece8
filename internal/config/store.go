package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/logging"
	"github.com/chainpkg/chainpkg/internal/platform"
)

// Store owns the configuration document and is its only writer.
// Methods are safe for concurrent use within one process.
type Store struct {
	mu   sync.Mutex
	path string
	doc  *Document
	now  func() time.Time

	// override selects a network for this process without touching doc.
	override string
}

// NewStore returns a store for path holding the default document. Call Load
// to read what is on disk.
func NewStore(path string) *Store {
	if path == "" {
		path = FilePath()
	}
	return &Store{path: path, doc: Default(), now: time.Now}
}

// Open is NewStore followed by LoadOrDefault.
func Open(path string, log *zap.Logger) (*Store, error) {
	s := NewStore(path)
	if err := s.LoadOrDefault(log); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Load merges the default document with the on-disk one and validates the
// result. A missing file yields the defaults. On failure the in-memory
// document is left unchanged.
func (s *Store) Load() error {
	_, err := s.load()
	return err
}

// load reports invalid=true when the file was read but its content is
// unusable, as opposed to an I/O failure.
func (s *Store) load() (invalid bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.doc = Default()
		s.mu.Unlock()
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.KindConfig, err, "reading config %s", s.path)
	}

	merged := Default()
	if err := json.Unmarshal(data, merged); err != nil {
		return true, errs.Wrap(errs.KindConfig, err, "parsing config %s", s.path)
	}
	if err := Validate(merged); err != nil {
		return true, err
	}
	merged.repairDefaults()

	s.mu.Lock()
	s.doc = merged
	s.mu.Unlock()
	return false, nil
}

// LoadOrDefault loads the document and, when its content is invalid,
// replaces it with the defaults and persists them. I/O failures are still
// returned.
func (s *Store) LoadOrDefault(log *zap.Logger) error {
	invalid, err := s.load()
	if err == nil || !invalid {
		return err
	}
	logging.OrNop(log).Warn("configuration invalid, restoring defaults",
		zap.String("path", s.path), zap.Error(err))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = Default()
	return s.saveLocked()
}

// Save writes the document atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes the document atomically with owner-only permissions.
func (s *Store) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := EnsureDir(dir); err != nil {
		return errs.Wrap(errs.KindConfig, err, "saving config")
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "encoding config")
	}
	data = append(data, '\n')

	if err := platform.WriteFileAtomic(s.path, data, FilePerm); err != nil {
		return errs.Wrap(errs.KindConfig, err, "saving config")
	}
	return nil
}

// mutate applies fn to a copy of the document and persists it. The
// in-memory document only changes when the save succeeds.
func (s *Store) mutate(fn func(d *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.doc
	next := prev.clone()
	if err := fn(next); err != nil {
		return err
	}
	s.doc = next
	if err := s.saveLocked(); err != nil {
		s.doc = prev
		return err
	}
	return nil
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.clone()
}

// Network returns the named profile.
func (s *Store) Network(name string) (NetworkProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.networkLocked(name)
}

func (s *Store) networkLocked(name string) (NetworkProfile, error) {
	p, ok := s.doc.Networks[name]
	if !ok {
		return NetworkProfile{}, errs.New(errs.KindConfig, "unknown network %q", name).With("network", name)
	}
	if p.Name == "" {
		p.Name = name
	}
	if p.RegistryAddress == "" {
		p.RegistryAddress = s.doc.RegistryAddress
	}
	return p, nil
}

// Networks lists every known profile sorted by name.
func (s *Store) Networks() []NetworkProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.doc.sortedNetworks()
	for i := range out {
		if out[i].RegistryAddress == "" {
			out[i].RegistryAddress = s.doc.RegistryAddress
		}
	}
	return out
}

// CurrentNetwork returns the selected profile.
func (s *Store) CurrentNetwork() NetworkProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.doc.Network
	if s.override != "" {
		name = s.override
	}
	p, err := s.networkLocked(name)
	if err != nil {
		// Load, UseNetwork and every mutator keep the selection defined.
		panic(fmt.Sprintf("config: current network %q missing", name))
	}
	return p
}

// SetCurrentNetwork selects name and persists the change.
func (s *Store) SetCurrentNetwork(name string) error {
	err := s.mutate(func(d *Document) error {
		if _, ok := d.Networks[name]; !ok {
			return errs.New(errs.KindConfig, "unknown network %q", name).With("network", name)
		}
		d.Network = name
		return nil
	})
	if err == nil {
		s.mu.Lock()
		s.override = ""
		s.mu.Unlock()
	}
	return err
}

// PutNetwork adds or replaces a network profile.
func (s *Store) PutNetwork(p NetworkProfile) error {
	if p.Name == "" || p.RPCURL == "" {
		return errs.New(errs.KindValidation, "network name and rpc url are required")
	}
	return s.mutate(func(d *Document) error {
		d.Networks[p.Name] = p
		return nil
	})
}

// UseNetwork selects name for this process only; nothing is written.
// Used for --network and per-request API overrides.
func (s *Store) UseNetwork(name string) error {
	if name == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Networks[name]; !ok {
		return errs.New(errs.KindConfig, "unknown network %q", name).With("network", name)
	}
	s.override = name
	return nil
}

// Wallet returns the named record.
func (s *Store) Wallet(name string) (WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.doc.walletIndex(name)
	if idx < 0 {
		return WalletRecord{}, errs.New(errs.KindConfig, "wallet %q not found", name).With("wallet", name)
	}
	return s.doc.Wallets[idx], nil
}

// DefaultWallet returns the record the default pointer names.
func (s *Store) DefaultWallet() (WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.doc.walletIndex(s.doc.DefaultWallet)
	if s.doc.DefaultWallet == "" || idx < 0 {
		return WalletRecord{}, errs.New(errs.KindConfig, "no default wallet")
	}
	return s.doc.Wallets[idx], nil
}

// Wallets returns a copy of every record in insertion order.
func (s *Store) Wallets() []WalletRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WalletRecord(nil), s.doc.Wallets...)
}

// AddWallet appends rec. The first wallet, or one marked IsDefault, becomes
// the only default.
func (s *Store) AddWallet(rec WalletRecord) error {
	if rec.Name == "" {
		return errs.New(errs.KindValidation, "wallet name is required")
	}
	return s.mutate(func(d *Document) error {
		if d.walletIndex(rec.Name) >= 0 {
			return errs.New(errs.KindConfig, "wallet %q already exists", rec.Name).With("wallet", rec.Name)
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now().UTC()
		}
		makeDefault := rec.IsDefault || len(d.Wallets) == 0
		rec.IsDefault = false
		d.Wallets = append(d.Wallets, rec)
		if makeDefault {
			d.markDefault(len(d.Wallets) - 1)
		}
		return nil
	})
}

// RemoveWallet deletes name. Removing the default elects the first remaining
// record, or clears the pointer when none remain.
func (s *Store) RemoveWallet(name string) error {
	return s.mutate(func(d *Document) error {
		idx := d.walletIndex(name)
		if idx < 0 {
			return errs.New(errs.KindConfig, "wallet %q not found", name).With("wallet", name)
		}
		wasDefault := d.Wallets[idx].IsDefault || d.DefaultWallet == name
		d.Wallets = append(d.Wallets[:idx], d.Wallets[idx+1:]...)
		switch {
		case len(d.Wallets) == 0:
			d.DefaultWallet = ""
		case wasDefault:
			d.markDefault(0)
		}
		return nil
	})
}

// SetDefaultWallet makes name the only default.
func (s *Store) SetDefaultWallet(name string) error {
	return s.mutate(func(d *Document) error {
		idx := d.walletIndex(name)
		if idx < 0 {
			return errs.New(errs.KindConfig, "wallet %q not found", name).With("wallet", name)
		}
		d.markDefault(idx)
		return nil
	})
}

// StorageCredentials returns the storage block with blank credentials
// filled from the environment.
func (s *Store) StorageCredentials() StorageConfig {
	s.mu.Lock()
	var sc StorageConfig
	if s.doc.Storage != nil {
		sc = *s.doc.Storage
	}
	s.mu.Unlock()

	env, err := readEnvCredentials()
	if err != nil {
		return sc
	}
	return sc.withEnv(env)
}

// SetStorage replaces the storage block and persists it.
func (s *Store) SetStorage(sc StorageConfig) error {
	return s.mutate(func(d *Document) error {
		d.Storage = &sc
		return Validate(d)
	})
}

// Fees returns the configured registry fees.
func (s *Store) Fees() Fees {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Fees
}
