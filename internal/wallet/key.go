package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/chainpkg/chainpkg/internal/errs"
)

// mnemonicEntropyBits yields a 12-word phrase.
const mnemonicEntropyBits = 128

// Account is a loaded key pair. It satisfies ledger.Signer and is handed to
// a pipeline for the duration of one operation.
type Account struct {
	name    string
	key     *ecdsa.PrivateKey
	address string
}

// NewAccount wraps key under name.
func NewAccount(name string, key *ecdsa.PrivateKey) *Account {
	return &Account{
		name:    name,
		key:     key,
		address: AddressOf(&key.PublicKey),
	}
}

// Name returns the wallet name the account was loaded from.
func (a *Account) Name() string { return a.name }

// Address returns the lower-case 0x-prefixed account address.
func (a *Account) Address() string { return a.address }

// PublicKeyHex returns the uncompressed public key.
func (a *Account) PublicKeyHex() string {
	return "0x" + hex.EncodeToString(crypto.FromECDSAPub(&a.key.PublicKey))
}

// Sign signs the Keccak-256 digest of message. The signature is 65 bytes
// in [R || S || V] form.
func (a *Account) Sign(message []byte) ([]byte, error) {
	return crypto.Sign(crypto.Keccak256(message), a.key)
}

func (a *Account) privateKeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(a.key))
}

// AddressOf derives the account address of pub.
func AddressOf(pub *ecdsa.PublicKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())
}

// NewMnemonic returns a fresh 12-word recovery phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "generating entropy")
	}
	m, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "generating mnemonic")
	}
	return m, nil
}

// KeyFromMnemonic derives the account key for a recovery phrase: the
// Keccak-256 of the BIP-39 seed (empty passphrase).
func KeyFromMnemonic(mnemonic string) (*ecdsa.PrivateKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errs.New(errs.KindValidation, "invalid mnemonic phrase")
	}
	seed := bip39.NewSeed(mnemonic, "")
	key, err := crypto.ToECDSA(crypto.Keccak256(seed))
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "deriving key from mnemonic")
	}
	return key, nil
}

// ParsePrivateKey decodes a hex private key with or without 0x.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 64 {
		return nil, errs.New(errs.KindValidation, "private key must be 32 bytes of hex")
	}
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid private key")
	}
	return key, nil
}

// ParseKeyMaterial accepts either a recovery phrase or a hex private key.
func ParseKeyMaterial(material string) (*ecdsa.PrivateKey, error) {
	if len(strings.Fields(material)) > 1 {
		return KeyFromMnemonic(material)
	}
	return ParsePrivateKey(material)
}
