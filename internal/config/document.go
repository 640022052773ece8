package config

import (
	"sort"
	"time"

	"github.com/chainpkg/chainpkg/internal/units"
)

// DocumentVersion is written to new configuration documents.
const DocumentVersion = "1.0.0"

// Network names shipped in the default document.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkDevnet  = "devnet"
	NetworkLocal   = "local"
)

// Storage provider identifiers.
const (
	ProviderPinata = "pinata"
	ProviderLocal  = "local"
)

// DefaultRegistryAddress is the registry deployment used when a network
// profile does not name its own.
const DefaultRegistryAddress = "0x5f3c0e9b2a7d4c1e8f6a0b3d9c2e7f1a4b8d6c0e"

// NetworkProfile describes one chain the CLI can talk to.
type NetworkProfile struct {
	Name            string `json:"name"`
	RPCURL          string `json:"rpcUrl"`
	FaucetURL       string `json:"faucetUrl,omitempty"`
	RegistryAddress string `json:"registryAddress,omitempty"`
	Production      bool   `json:"production,omitempty"`
}

// WalletRecord is a stored key pair. PrivateKey is hex encoded and may be
// empty for watch-only records.
type WalletRecord struct {
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	PublicKey  string    `json:"publicKey,omitempty"`
	PrivateKey string    `json:"privateKey,omitempty"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StorageConfig holds content-store settings and credentials.
type StorageConfig struct {
	Provider     string `json:"provider"`
	APIURL       string `json:"apiUrl,omitempty"`
	GatewayURL   string `json:"gatewayUrl,omitempty"`
	PinataAPIKey string `json:"pinataApiKey,omitempty"`
	PinataSecret string `json:"pinataSecretKey,omitempty"`
	PinataJWT    string `json:"pinataJwt,omitempty"`
	LocalPath    string `json:"localPath,omitempty"`
}

// HasPinataCredentials reports whether either credential form is present.
func (s StorageConfig) HasPinataCredentials() bool {
	return s.PinataJWT != "" || (s.PinataAPIKey != "" && s.PinataSecret != "")
}

// Fees are flat registry charges in base units.
type Fees struct {
	Publish          uint64 `json:"publish"`
	Endorse          uint64 `json:"endorse"`
	RegisterEndorser uint64 `json:"registerEndorser"`
	MinEndorserStake uint64 `json:"minEndorserStake"`
	FaucetGrant      uint64 `json:"faucetGrant"`
}

// Document is the on-disk configuration.
type Document struct {
	Version         string                    `json:"version"`
	Network         string                    `json:"network"`
	Networks        map[string]NetworkProfile `json:"networks"`
	RegistryAddress string                    `json:"registryAddress,omitempty"`
	Storage         *StorageConfig            `json:"storage"`
	Fees            Fees                      `json:"fees"`
	Wallets         []WalletRecord            `json:"wallets"`
	DefaultWallet   string                    `json:"defaultWallet,omitempty"`
}

// Default returns the built-in configuration document.
func Default() *Document {
	return &Document{
		Version: DocumentVersion,
		Network: NetworkTestnet,
		Networks: map[string]NetworkProfile{
			NetworkMainnet: {
				Name:       NetworkMainnet,
				RPCURL:     "https://rpc.mainnet.chainpkg.dev",
				Production: true,
			},
			NetworkTestnet: {
				Name:      NetworkTestnet,
				RPCURL:    "https://rpc.testnet.chainpkg.dev",
				FaucetURL: "https://faucet.testnet.chainpkg.dev",
			},
			NetworkDevnet: {
				Name:      NetworkDevnet,
				RPCURL:    "https://rpc.devnet.chainpkg.dev",
				FaucetURL: "https://faucet.devnet.chainpkg.dev",
			},
			NetworkLocal: {
				Name:      NetworkLocal,
				RPCURL:    "http://127.0.0.1:8080",
				FaucetURL: "http://127.0.0.1:8081",
			},
		},
		RegistryAddress: DefaultRegistryAddress,
		Storage: &StorageConfig{
			Provider:   ProviderPinata,
			APIURL:     "https://api.pinata.cloud",
			GatewayURL: "https://gateway.pinata.cloud",
		},
		Fees: Fees{
			Publish:          1 * units.PerCoin,
			Endorse:          units.PerCoin / 100,
			RegisterEndorser: units.PerCoin / 10,
			MinEndorserStake: 1 * units.PerCoin,
			FaucetGrant:      1 * units.PerCoin,
		},
		Wallets: []WalletRecord{},
	}
}

// clone returns a deep copy so callers never alias store-owned state.
func (d *Document) clone() *Document {
	out := *d
	out.Networks = make(map[string]NetworkProfile, len(d.Networks))
	for k, v := range d.Networks {
		out.Networks[k] = v
	}
	if d.Storage != nil {
		s := *d.Storage
		out.Storage = &s
	}
	out.Wallets = append([]WalletRecord(nil), d.Wallets...)
	return &out
}

// sortedNetworks returns profiles ordered by name.
func (d *Document) sortedNetworks() []NetworkProfile {
	out := make([]NetworkProfile, 0, len(d.Networks))
	for name, p := range d.Networks {
		if p.Name == "" {
			p.Name = name
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Document) walletIndex(name string) int {
	for i := range d.Wallets {
		if d.Wallets[i].Name == name {
			return i
		}
	}
	return -1
}

// markDefault clears every flag, sets exactly one and moves the pointer.
func (d *Document) markDefault(idx int) {
	for i := range d.Wallets {
		d.Wallets[i].IsDefault = i == idx
	}
	d.DefaultWallet = d.Wallets[idx].Name
}

// repairDefaults restores the exactly-one-default invariant on documents
// edited by hand: the pointer wins, then the first flagged record, then the
// first record.
func (d *Document) repairDefaults() {
	if len(d.Wallets) == 0 {
		d.DefaultWallet = ""
		return
	}
	if idx := d.walletIndex(d.DefaultWallet); d.DefaultWallet != "" && idx >= 0 {
		d.markDefault(idx)
		return
	}
	for i := range d.Wallets {
		if d.Wallets[i].IsDefault {
			d.markDefault(i)
			return
		}
	}
	d.markDefault(0)
}
