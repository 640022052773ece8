package publish

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/ledger/ledgertest"
	"github.com/chainpkg/chainpkg/internal/manifest"
	"github.com/chainpkg/chainpkg/internal/registry"
	"github.com/chainpkg/chainpkg/internal/storage"
	"github.com/chainpkg/chainpkg/internal/storage/localfs"
	"github.com/chainpkg/chainpkg/internal/units"
	"github.com/chainpkg/chainpkg/internal/wallet"
)

const registryAddr = "0x5f3c0e9b2a7d4c1e8f6a0b3d9c2e7f1a4b8d6c0e"

type fixture struct {
	node     *ledgertest.Node
	registry *registry.Client
	storage  *storage.Client
	cas      *localfs.CAS
	signer   *wallet.Account
	tmp      string
	states   []State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tmp := t.TempDir()
	node := ledgertest.New(t)
	chain := ledger.New(ledger.Options{
		RPCURL:          node.URL(),
		ConfirmTimeout:  time.Second,
		PollInterval:    2 * time.Millisecond,
		MaxPollInterval: 10 * time.Millisecond,
		Retries:         -1,
	})
	cas, err := localfs.New(filepath.Join(t.TempDir(), "cas"))
	require.NoError(t, err)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &fixture{
		node:     node,
		registry: registry.New(chain, registryAddr, nil),
		storage:  storage.New(cas, nil),
		cas:      cas,
		signer:   wallet.NewAccount("publisher", key),
		tmp:      tmp,
	}
}

func (f *fixture) pipeline(confirm Confirmer) *Pipeline {
	return f.pipelineWith(f.registry, f.storage, confirm)
}

func (f *fixture) pipelineWith(reg Registry, store Storage, confirm Confirmer) *Pipeline {
	return New(Deps{
		Registry: reg,
		Storage:  store,
		Confirm:  confirm,
		Observer: func(tr Transition) { f.states = append(f.states, tr.To) },
		Fee:      units.PerCoin,
		Network:  "fake",
		TempDir:  f.tmp,
	})
}

func writePackage(t *testing.T, name, version string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	move := "[package]\nname = \"" + name + "\"\n"
	if version != "" {
		move += "version = \"" + version + "\"\n"
	}
	files := map[string]string{
		"Move.toml":     move,
		"chainpkg.yaml": "description: math helpers\nkind: DeFi\ntags: [math]\nlicense: MIT\n",
	}
	files["sources/"+name+".move"] = "module " + name + "::m {}\n"
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files left behind")
}

func TestPublishDone(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)
	dir := writePackage(t, "alpha", "1.0.0")

	out, err := f.pipeline(AutoConfirm).Run(context.Background(), f.signer, Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, Done, out.State)
	assert.Equal(t, order, f.states)
	assert.Equal(t, "alpha", out.Package)
	assert.Equal(t, "1.0.0", out.Version)
	assert.Empty(t, out.Warnings)
	require.NotNil(t, out.Transaction)
	assert.True(t, out.Transaction.Success)
	assert.True(t, f.cas.Has(out.ContentAddress))

	meta, err := f.registry.PackageMetadata(context.Background(), "alpha", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, out.ContentAddress, meta.ContentAddress)
	assert.Equal(t, "defi", meta.Kind)
	assert.Equal(t, []string{"math"}, meta.Tags)
	require.NotNil(t, meta.License)
	assert.Equal(t, "MIT", *meta.License)

	assert.Equal(t, units.PerCoin, f.node.BalanceOf(f.signer.Address()))
	assertNoTemp(t, f.tmp)
}

func TestPublishInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), units.PerCoin/2)

	out, err := f.pipeline(AutoConfirm).Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.EqualError(t, err, "insufficient balance: have 0.5, need 1 (short 0.5)")
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, []State{Validating, Archiving, Uploading, FeeCheck, Failed}, f.states)
	assert.Zero(t, f.node.Submissions(), "no transaction may be built or submitted")
	assertNoTemp(t, f.tmp)
}

func TestPublishDeclined(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)

	var quoted Quote
	confirm := ConfirmFunc(func(_ context.Context, q Quote) (bool, error) {
		quoted = q
		return false, nil
	})
	out, err := f.pipeline(confirm).Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.NoError(t, err, "declining is not an error")
	assert.Equal(t, Cancelled, out.State)
	assert.Zero(t, f.node.Submissions())
	assert.Equal(t, "publish", quoted.Action)
	assert.Equal(t, manifest.DefaultVersion, quoted.Version)
	assert.Equal(t, units.PerCoin, quoted.Fee)
	assert.Equal(t, 2*units.PerCoin, quoted.Balance)
	assert.Equal(t, f.signer.Address(), quoted.Signer)
	assertNoTemp(t, f.tmp)
}

func TestPublishVersionPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		flag     string
		want     string
	}{
		{name: "flag wins", manifest: "1.2.0", flag: "2.0.0", want: "2.0.0"},
		{name: "manifest", manifest: "1.2.0", want: "1.2.0"},
		{name: "default", want: manifest.DefaultVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			out, err := f.pipeline(Decline).Run(context.Background(), f.signer, Options{
				Dir:     writePackage(t, "alpha", tt.manifest),
				Version: tt.flag,
			})
			// Balance is zero, so the run stops at the fee check.
			require.Error(t, err)
			assert.Equal(t, tt.want, out.Version)
		})
	}
}

func TestPublishValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		dir     func(t *testing.T) string
		version string
	}{
		{name: "missing directory", dir: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }},
		{name: "no manifest", dir: func(t *testing.T) string { return t.TempDir() }},
		{name: "bad version", dir: func(t *testing.T) string { return writePackage(t, "alpha", "") }, version: "1.0"},
		{name: "leading zero", dir: func(t *testing.T) string { return writePackage(t, "alpha", "") }, version: "1.01.0"},
		{name: "empty path", dir: func(*testing.T) string { return "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)
			out, err := f.pipeline(AutoConfirm).Run(context.Background(), f.signer, Options{Dir: tt.dir(t), Version: tt.version})
			require.Error(t, err)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
			assert.Equal(t, []State{Validating, Failed}, f.states)
			assert.Equal(t, Failed, out.State)
			assert.Zero(t, f.node.Submissions())
		})
	}
}

func TestPublishAlreadyPublished(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 5*units.PerCoin)
	f.node.AddPackage(ledgertest.Package{Name: "alpha", Version: "1.0.0"})

	_, err := f.pipeline(AutoConfirm).Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "1.0.0")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already published")
	assert.Zero(t, f.node.Submissions())
}

type brokenStorage struct{}

func (brokenStorage) UploadDirectory(context.Context, string, storage.PinMetadata) (*storage.UploadResult, error) {
	return nil, errs.New(errs.KindStorage, "pinning service unavailable")
}

func TestPublishUploadFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)

	out, err := f.pipelineWith(f.registry, brokenStorage{}, AutoConfirm).
		Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.Error(t, err)
	assert.Equal(t, errs.KindStorage, errs.KindOf(err))
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, []State{Validating, Archiving, Uploading, Failed}, f.states)
	assert.Zero(t, f.node.Submissions())
	assertNoTemp(t, f.tmp)
}

func TestPublishTagsOverride(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)

	_, err := f.pipeline(AutoConfirm).Run(context.Background(), f.signer, Options{
		Dir:  writePackage(t, "alpha", ""),
		Tags: []string{"oracle", "price"},
	})
	require.NoError(t, err)
	pkg, ok := f.node.Package("alpha", manifest.DefaultVersion)
	require.True(t, ok)
	assert.Equal(t, []string{"oracle", "price"}, pkg.Tags)
}

func TestPublishPendingConfirmation(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)
	f.node.Stall = true
	chain := ledger.New(ledger.Options{
		RPCURL:          f.node.URL(),
		ConfirmTimeout:  30 * time.Millisecond,
		PollInterval:    2 * time.Millisecond,
		MaxPollInterval: 5 * time.Millisecond,
		Retries:         -1,
	})
	reg := registry.New(chain, registryAddr, nil)

	out, err := f.pipelineWith(reg, f.storage, AutoConfirm).
		Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.NoError(t, err)
	assert.Equal(t, ConfirmationPending, out.State)
	require.NotNil(t, out.Transaction)
	assert.True(t, out.Transaction.Pending)
	assert.Contains(t, out.Message, out.Transaction.TransactionID)
	assertNoTemp(t, f.tmp)
}

// impatient gives up on the ledger shortly after submitting.
type impatient struct {
	*registry.Client
	wait time.Duration
}

func (i impatient) PublishPackage(ctx context.Context, signer ledger.Signer, p registry.PublishParams) (*registry.TransactionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, i.wait)
	defer cancel()
	return i.Client.PublishPackage(ctx, signer, p)
}

func TestPublishDeadlineAfterSubmit(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)
	f.node.Stall = true

	reg := impatient{Client: f.registry, wait: 50 * time.Millisecond}
	out, err := f.pipelineWith(reg, f.storage, AutoConfirm).
		Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.NoError(t, err)
	assert.Equal(t, ConfirmationPending, out.State)
	require.NotNil(t, out.Transaction)
	assert.True(t, out.Transaction.Pending)
	assert.NotEmpty(t, out.Transaction.TransactionID)
	assert.Equal(t, 1, f.node.Submissions())
}

// skewed reports a different content address than the one registered.
type skewed struct {
	*registry.Client
	verifyErr error
}

func (s skewed) PackageMetadata(ctx context.Context, name, version string) (*registry.PackageMetadata, error) {
	meta, err := s.Client.PackageMetadata(ctx, name, version)
	if err != nil || meta == nil {
		return meta, err
	}
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	meta.ContentAddress = "bafkreiother"
	return meta, nil
}

func TestPublishVerificationMismatchIsWarning(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)

	out, err := f.pipelineWith(skewed{Client: f.registry}, f.storage, AutoConfirm).
		Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.NoError(t, err)
	assert.Equal(t, Done, out.State)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "does not match")
}

func TestPublishVerificationErrorIsWarning(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)

	reg := skewed{Client: f.registry, verifyErr: errs.New(errs.KindBlockchain, "node went away")}
	out, err := f.pipelineWith(reg, f.storage, AutoConfirm).
		Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.NoError(t, err)
	assert.Equal(t, Done, out.State)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "node went away")
}

func TestPublishRevertedIsReported(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)
	f.node.PublishFee = 3 * units.PerCoin // the contract charges more than the quote

	out, err := f.pipeline(AutoConfirm).Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.NoError(t, err)
	assert.Equal(t, Failed, out.State)
	require.NotNil(t, out.Transaction)
	assert.False(t, out.Transaction.Success)
	assert.Equal(t, "transaction reverted: "+ledgertest.AbortInsufficientBalance, out.Message)
}

func TestPublishConfirmError(t *testing.T) {
	f := newFixture(t)
	f.node.SetBalance(f.signer.Address(), 2*units.PerCoin)
	confirm := ConfirmFunc(func(context.Context, Quote) (bool, error) { return false, errors.New("stdin closed") })

	out, err := f.pipeline(confirm).Run(context.Background(), f.signer, Options{Dir: writePackage(t, "alpha", "")})
	require.Error(t, err)
	assert.Equal(t, Failed, out.State)
	assert.Zero(t, f.node.Submissions())
}

func TestSchemaIssuesBecomeWarnings(t *testing.T) {
	f := newFixture(t)
	dir := writePackage(t, "alpha", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chainpkg.yaml"), []byte("tags: [Not Valid]\n"), 0o644))

	out, err := f.pipeline(Decline).Run(context.Background(), f.signer, Options{Dir: dir})
	require.Error(t, err, "zero balance")
	assert.NotEmpty(t, out.Warnings)
}

func TestCheckFunds(t *testing.T) {
	assert.NoError(t, CheckFunds(Quote{Fee: 10, Balance: 10}))
	err := CheckFunds(Quote{Fee: units.PerCoin / 10, Extra: units.PerCoin, Balance: units.PerCoin})
	require.Error(t, err)
	assert.EqualError(t, err, "insufficient balance: have 1, need 1.1 (short 0.1)")
	assert.Equal(t, uint64(110_000_000), errs.FieldsOf(err)["required"])

	// A sum that wraps around must not look affordable.
	wrapping := Quote{Fee: 10_000_000, Extra: math.MaxUint64 - 10_000_000 + 1, Balance: 500_000_000}
	_, ok := wrapping.Total()
	assert.False(t, ok)
	err = CheckFunds(wrapping)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Contains(t, err.Error(), "insufficient balance")

	assert.NoError(t, CheckFunds(Quote{Fee: 1, Extra: math.MaxUint64 - 1, Balance: math.MaxUint64}))
}

func TestStateHelpers(t *testing.T) {
	assert.Equal(t, Archiving, next(Validating))
	assert.Equal(t, Done, next(Verifying))
	assert.Equal(t, Failed, next(Done))
	for _, s := range []State{Done, Failed, Cancelled, ConfirmationPending} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, Uploading.Terminal())
}
