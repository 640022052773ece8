package wallet

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/ledger/ledgertest"
)

// Standard BIP-39 test vector phrase.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newManager(t *testing.T, production bool) (*Manager, *ledgertest.Node, *config.Store) {
	t.Helper()
	node := ledgertest.New(t)
	store := config.NewStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, store.Load())
	require.NoError(t, store.PutNetwork(config.NetworkProfile{
		Name:       "fake",
		RPCURL:     node.URL(),
		FaucetURL:  node.FaucetURL(),
		Production: production,
	}))
	require.NoError(t, store.SetCurrentNetwork("fake"))

	chain := ledger.New(ledger.Options{RPCURL: node.URL(), FaucetURL: node.FaucetURL(), Retries: -1})
	return New(store, chain, nil), node, store
}

func TestCreateFundsOnNonProductionNetwork(t *testing.T) {
	m, node, store := newManager(t, false)

	created, err := m.Create(context.Background(), "dev")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(created.Mnemonic), 12)
	assert.True(t, created.Funded)
	assert.Empty(t, created.FundingWarning)
	assert.True(t, created.IsDefault)
	assert.Equal(t, 1, node.FaucetCalls())
	assert.Equal(t, store.Fees().FaucetGrant, node.BalanceOf(created.Address))

	// The recovery phrase reproduces the stored key.
	key, err := KeyFromMnemonic(created.Mnemonic)
	require.NoError(t, err)
	assert.Equal(t, created.Address, AddressOf(&key.PublicKey))
}

func TestCreateSkipsFaucetOnProduction(t *testing.T) {
	m, node, _ := newManager(t, true)

	created, err := m.Create(context.Background(), "main")
	require.NoError(t, err)
	assert.False(t, created.Funded)
	assert.Zero(t, node.FaucetCalls())
}

func TestCreateFaucetFailureIsWarning(t *testing.T) {
	m, node, _ := newManager(t, false)
	node.Server.Close()

	created, err := m.Create(context.Background(), "dev")
	require.NoError(t, err)
	assert.False(t, created.Funded)
	assert.NotEmpty(t, created.FundingWarning)

	_, err = m.Show("dev")
	assert.NoError(t, err, "the wallet is stored even when funding fails")
}

func TestCreateDuplicateName(t *testing.T) {
	m, _, _ := newManager(t, true)
	_, err := m.Create(context.Background(), "dup")
	require.NoError(t, err)
	_, err = m.Create(context.Background(), "dup")
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
}

func TestImport(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + strings.ToUpper(NewAccount("x", key).privateKeyHex())
	mnemonicKey, err := KeyFromMnemonic(testMnemonic)
	require.NoError(t, err)

	tests := []struct {
		name     string
		material string
		wantAddr string
		wantKind errs.Kind
	}{
		{name: "hex key", material: hexKey, wantAddr: AddressOf(&key.PublicKey)},
		{name: "mnemonic with extra spaces", material: "  " + strings.ReplaceAll(testMnemonic, " ", "  ") + "\n", wantAddr: AddressOf(&mnemonicKey.PublicKey)},
		{name: "short hex", material: "0xdeadbeef", wantKind: errs.KindValidation},
		{name: "bad checksum phrase", material: strings.Repeat("abandon ", 12), wantKind: errs.KindValidation},
		{name: "not hex", material: strings.Repeat("zz", 32), wantKind: errs.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, node, _ := newManager(t, false)
			info, err := m.Import("imported", tt.material)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, errs.KindOf(err))
				assert.Empty(t, m.List())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, info.Address)
			assert.True(t, info.HasPrivateKey)
			assert.Zero(t, node.FaucetCalls(), "imports are never funded")
		})
	}
}

func TestShowDefault(t *testing.T) {
	m, _, _ := newManager(t, true)

	_, err := m.Show("")
	require.Error(t, err)
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
	assert.Contains(t, err.Error(), "no default wallet")

	_, err = m.Import("first", testMnemonic)
	require.NoError(t, err)
	info, err := m.Show("")
	require.NoError(t, err)
	assert.Equal(t, "first", info.Name)
}

func TestUseRemoveAndList(t *testing.T) {
	m, _, _ := newManager(t, true)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	for _, n := range []string{"a", "b", "c"} {
		_, err := m.Create(context.Background(), n)
		require.NoError(t, err)
	}
	require.NoError(t, m.Use("c"))
	require.NoError(t, m.Remove("c"))

	list := m.List()
	require.Len(t, list, 2)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), list[0].CreatedAt)
}

func TestAccountSigns(t *testing.T) {
	m, _, _ := newManager(t, true)
	_, err := m.Import("signer", testMnemonic)
	require.NoError(t, err)

	acct, err := m.Account("")
	require.NoError(t, err)
	msg := []byte("payload")
	sig, err := acct.Sign(msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	pub, err := crypto.SigToPub(crypto.Keccak256(msg), sig)
	require.NoError(t, err)
	assert.Equal(t, acct.Address(), AddressOf(pub))
}

func TestBalance(t *testing.T) {
	m, node, _ := newManager(t, true)
	info, err := m.Import("rich", testMnemonic)
	require.NoError(t, err)
	node.SetBalance(info.Address, 7)

	bal, err := m.Balance(context.Background(), "rich")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), bal)
}
