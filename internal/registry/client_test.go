package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/ledger/ledgertest"
	"github.com/chainpkg/chainpkg/internal/wallet"
)

const registryAddr = "0x5f3c0e9b2a7d4c1e8f6a0b3d9c2e7f1a4b8d6c0e"

type fixture struct {
	node   *ledgertest.Node
	client *Client
	acct   *wallet.Account
	logs   *observer.ObservedLogs
}

func newFixture(t *testing.T, confirm time.Duration) *fixture {
	t.Helper()
	node := ledgertest.New(t)
	chain := ledger.New(ledger.Options{
		RPCURL:          node.URL(),
		ConfirmTimeout:  confirm,
		PollInterval:    2 * time.Millisecond,
		MaxPollInterval: 10 * time.Millisecond,
		Retries:         -1,
	})
	core, logs := observer.New(zapcore.WarnLevel)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	acct := wallet.NewAccount("publisher", key)
	node.SetBalance(acct.Address(), 10*node.PublishFee)
	return &fixture{
		node:   node,
		client: New(chain, registryAddr, zap.New(core)),
		acct:   acct,
		logs:   logs,
	}
}

func alpha(version string) PublishParams {
	return PublishParams{
		Name:           "alpha",
		Version:        version,
		ContentAddress: "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy",
		Kind:           "Library",
		Description:    "math helpers",
		Tags:           []string{"math", "utils"},
		Repository:     "https://example.com/alpha.git",
	}
}

func TestPackageMetadataAbsent(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	meta, err := f.client.PackageMetadata(ctx, "beta", "1.0.0")
	require.NoError(t, err)
	assert.Nil(t, meta)

	meta, err = f.client.PackageMetadata(ctx, "beta", "")
	require.NoError(t, err)
	assert.Nil(t, meta)

	versions, err := f.client.PackageVersions(ctx, "beta")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestPublishThenRead(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	res, err := f.client.PublishPackage(ctx, f.acct, alpha("1.0.0"))
	require.NoError(t, err)
	require.True(t, res.Success, res.StatusMessage)
	assert.NotEmpty(t, res.TransactionID)

	meta, err := f.client.PackageMetadata(ctx, "alpha", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, alpha("").ContentAddress, meta.ContentAddress)
	assert.Equal(t, f.acct.Address(), meta.Publisher)
	assert.Equal(t, "library", meta.Kind)
	assert.Equal(t, []string{"math", "utils"}, meta.Tags)
	assert.Empty(t, meta.Endorsements)
	assert.Nil(t, meta.Homepage)
	require.NotNil(t, meta.Repository)
	assert.Equal(t, "https://example.com/alpha.git", *meta.Repository)
	assert.NotZero(t, meta.TimestampSeconds)

	again, err := f.client.PackageMetadata(ctx, "alpha", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, meta, again, "reads are idempotent")
}

func TestLatestVersionTrustsRegistryOrder(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	for _, v := range []string{"1.0.0", "2.0.0", "1.5.0"} {
		res, err := f.client.PublishPackage(ctx, f.acct, alpha(v))
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	meta, err := f.client.PackageMetadata(ctx, "alpha", "")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "1.5.0", meta.Version, "last listed version wins")

	warnings := f.logs.FilterMessage("registry order disagrees with semantic version order").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "2.0.0", warnings[0].ContextMap()["highest"])
}

func TestLatestVersionNoWarningWhenOrdered(t *testing.T) {
	f := newFixture(t, time.Second)
	f.node.AddPackage(ledgertest.Package{Name: "alpha", Version: "1.0.0"})
	f.node.AddPackage(ledgertest.Package{Name: "alpha", Version: "1.2.0"})

	latest, err := f.client.LatestVersion(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", latest)
	assert.Zero(t, f.logs.Len())
}

func TestWriteReverted(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	_, err := f.client.PublishPackage(ctx, f.acct, alpha("1.0.0"))
	require.NoError(t, err)
	res, err := f.client.PublishPackage(ctx, f.acct, alpha("1.0.0"))
	require.NoError(t, err, "a reverted write is a result")
	assert.False(t, res.Success)
	assert.False(t, res.Pending)
	assert.Equal(t, ledgertest.AbortPackageExists, res.StatusMessage)
}

func TestWritePending(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	f.node.Stall = true

	res, err := f.client.Initialize(context.Background(), f.acct)
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.False(t, res.Success)
	assert.Contains(t, res.StatusMessage, res.TransactionID)
}

func TestWriteDeadlineAfterSubmitIsPending(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.node.Stall = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := f.client.Initialize(ctx, f.acct)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Pending)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.TransactionID)
	assert.Contains(t, res.StatusMessage, res.TransactionID)
	assert.Equal(t, 1, f.node.Submissions())
}

func TestEndorseAndTip(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	_, err := f.client.PublishPackage(ctx, f.acct, alpha("1.0.0"))
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fan := wallet.NewAccount("fan", key)
	f.node.SetBalance(fan.Address(), 5*f.node.MinStake)

	res, err := f.client.EndorsePackage(ctx, fan, "alpha", "1.0.0")
	require.NoError(t, err)
	assert.False(t, res.Success, "unregistered endorsers are rejected on chain")

	info, err := f.client.EndorserInfo(ctx, fan.Address())
	require.NoError(t, err)
	assert.Nil(t, info)

	res, err = f.client.RegisterEndorser(ctx, fan, f.node.MinStake)
	require.NoError(t, err)
	require.True(t, res.Success, res.StatusMessage)

	info, err = f.client.EndorserInfo(ctx, fan.Address())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, f.node.MinStake, info.StakeAmount)
	assert.True(t, info.IsActive)

	res, err = f.client.EndorsePackage(ctx, fan, "alpha", "1.0.0")
	require.NoError(t, err)
	require.True(t, res.Success, res.StatusMessage)

	res, err = f.client.TipPackage(ctx, fan, "alpha", "1.0.0", 1234)
	require.NoError(t, err)
	require.True(t, res.Success, res.StatusMessage)

	meta, err := f.client.PackageMetadata(ctx, "alpha", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, []string{fan.Address()}, meta.Endorsements)
	assert.Equal(t, uint64(1234), meta.TotalTips)

	stats, err := f.client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalPackages: 1, TotalEndorsers: 1, TotalTips: 1234}, *stats)
}

func TestAllPackagesIsOneCall(t *testing.T) {
	f := newFixture(t, time.Second)
	f.node.AddPackage(ledgertest.Package{Name: "alpha", Version: "1.0.0"})
	f.node.AddPackage(ledgertest.Package{Name: "beta", Version: "0.1.0", Tags: []string{"x"}})

	all, err := f.client.AllPackages(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, f.node.Views("get_all_packages"))
}

func TestReadFailuresAreBlockchainErrors(t *testing.T) {
	tests := []struct {
		name   string
		fn     string
		status int
		body   string
		call   func(*Client) error
	}{
		{
			name: "node error", fn: "get_all_packages", status: http.StatusInternalServerError, body: `{"message":"down"}`,
			call: func(c *Client) error { _, err := c.AllPackages(context.Background()); return err },
		},
		{
			name: "malformed list", fn: "get_all_packages", status: http.StatusOK, body: `[{"not":"a list"}]`,
			call: func(c *Client) error { _, err := c.AllPackages(context.Background()); return err },
		},
		{
			name: "bad u64", fn: "get_package_metadata", status: http.StatusOK, body: `[{"vec":[{"name":"a","timestamp":"soon"}]}]`,
			call: func(c *Client) error { _, err := c.PackageMetadata(context.Background(), "a", "1.0.0"); return err },
		},
		{
			name: "short stats", fn: "get_registry_stats", status: http.StatusOK, body: `["1","2"]`,
			call: func(c *Client) error { _, err := c.Stats(context.Background()); return err },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Second)
			f.node.RespondView(tt.fn, tt.status, tt.body)
			err := tt.call(f.client)
			require.Error(t, err)
			assert.Equal(t, errs.KindBlockchain, errs.KindOf(err))
		})
	}
}

func TestParseOption(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		present bool
		wantErr bool
	}{
		{name: "none", raw: `{"vec":[]}`},
		{name: "some", raw: `{"vec":["x"]}`, want: `"x"`, present: true},
		{name: "null", raw: `null`},
		{name: "bare string", raw: `"x"`, want: `"x"`, present: true},
		{name: "bare struct", raw: `{"a":1}`, want: `{"a":1}`, present: true},
		{name: "two elements", raw: `{"vec":["x","y"]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := parseOption(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.present, ok)
			if tt.present {
				assert.JSONEq(t, tt.want, string(got))
			}
		})
	}
}

func TestDecodeHexString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: encodeHexString("bafkreiabc"), want: "bafkreiabc"},
		{in: "QmPlainCID", want: "QmPlainCID"},
		{in: "0xzz", want: "0xzz"},
		{in: "0xff", want: "0xff"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeHexString(tt.in), tt.in)
	}
}

func TestHighestVersion(t *testing.T) {
	assert.Equal(t, "2.0.0", highestVersion([]string{"1.0.0", "2.0.0", "1.10.0"}))
	assert.Equal(t, "1.10.0", highestVersion([]string{"1.9.0", "1.10.0"}))
	assert.Equal(t, "", highestVersion([]string{"latest"}))
}
