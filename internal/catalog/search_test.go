package catalog

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpkg/chainpkg/internal/ledger"
	"github.com/chainpkg/chainpkg/internal/ledger/ledgertest"
	"github.com/chainpkg/chainpkg/internal/registry"
)

func strptr(s string) *string { return &s }

func fixturePackages() []registry.PackageMetadata {
	return []registry.PackageMetadata{
		{
			Name: "alpha", Version: "1.0.0", Kind: "library",
			Description:  "Fixed-point math helpers",
			Tags:         []string{"math", "fixed-point"},
			Endorsements: []string{"0x01", "0x02"},
			License:      strptr("MIT"),
		},
		{
			Name: "alpha-token", Version: "0.2.0", Kind: "token",
			Description:  "Fungible token standard",
			Tags:         []string{"token"},
			Endorsements: []string{},
		},
		{Name: "", Version: "1.0.0"},
		{
			Name: "vault", Version: "1.1.0", Kind: "defi",
			Description:  "Yield vault for staking",
			Tags:         []string{"defi", "yield"},
			Endorsements: []string{"0x03"},
		},
		{Name: "broken", Version: " "},
	}
}

func names(res Results) []string {
	out := []string{}
	for _, m := range res.Matches {
		out = append(out, m.Package.Name)
	}
	return out
}

func TestQueryRanking(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query keeps registry order", "", []string{"alpha", "alpha-token", "vault"}},
		{"exact name ranks first", "alpha", []string{"alpha", "alpha-token"}},
		{"case insensitive", "ALPHA", []string{"alpha", "alpha-token"}},
		{"typo within threshold", "alpa", []string{"alpha", "alpha-token"}},
		{"tag match", "math", []string{"alpha"}},
		{"tag and description", "yield", []string{"vault"}},
		{"description token", "fungible", []string{"alpha-token"}},
		{"unrelated text", "qzxwv", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Query(fixturePackages(), tt.query, Filters{})
			assert.Equal(t, tt.want, names(res))
			assert.Equal(t, 2, res.Skipped)
		})
	}
}

func TestQueryExactNameScoresZero(t *testing.T) {
	res := Query(fixturePackages(), "vault", Filters{})
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "vault", res.Matches[0].Package.Name)
	assert.Zero(t, res.Matches[0].Score)
	for _, m := range res.Matches {
		assert.LessOrEqual(t, m.Score, Threshold)
	}
}

func TestQueryExactNameBeatsExactTag(t *testing.T) {
	pkgs := []registry.PackageMetadata{
		{Name: "adapter", Version: "1.0.0", Tags: []string{"zeta"}, Endorsements: []string{"0x01", "0x02"}},
		{Name: "zeta", Version: "0.1.0"},
		{Name: "beacon", Version: "1.0.0", Description: "zeta"},
	}
	res := Query(pkgs, "zeta", Filters{})
	assert.Equal(t, []string{"zeta", "adapter", "beacon"}, names(res))
	assert.Zero(t, res.Matches[0].Score)
	assert.InDelta(t, tagPenalty, res.Matches[1].Score, 1e-9)
}

func TestQueryTiesPreferEndorsedThenTipped(t *testing.T) {
	pkgs := []registry.PackageMetadata{
		{Name: "swap-a", Version: "1.0.0", Tags: []string{"dex"}},
		{Name: "swap-b", Version: "1.0.0", Tags: []string{"dex"}, TotalTips: 50},
		{Name: "swap-c", Version: "1.0.0", Tags: []string{"dex"}, Endorsements: []string{"0x01"}},
	}
	res := Query(pkgs, "dex", Filters{})
	assert.Equal(t, []string{"swap-c", "swap-b", "swap-a"}, names(res))
}

func TestQueryFilters(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		filters Filters
		want    []string
	}{
		{"kind is case insensitive", "", Filters{Kind: "DEFI"}, []string{"vault"}},
		{"min endorsements", "", Filters{MinEndorsements: 1}, []string{"alpha", "vault"}},
		{"limit after ranking", "alpha", Filters{Limit: 1}, []string{"alpha"}},
		{"kind after ranking", "alpha", Filters{Kind: "token"}, []string{"alpha-token"}},
		{"filters compose", "", Filters{Kind: "library", MinEndorsements: 3}, []string{}},
		{"limit larger than result", "", Filters{Limit: 10}, []string{"alpha", "alpha-token", "vault"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Query(fixturePackages(), tt.query, tt.filters)
			assert.Equal(t, tt.want, names(res))
		})
	}
}

func TestScore(t *testing.T) {
	assert.Zero(t, Score("", "anything", "", nil))
	assert.Zero(t, Score("  Alpha ", "alpha", "", nil))
	assert.Equal(t, prefixScore, Score("alp", "alpha", "", nil))
	assert.Equal(t, substringScore, Score("pha", "alpha", "", nil))
	assert.InDelta(t, substringScore+descriptionPenalty, Score("point", "zeta", "fixed point", nil), 1e-9)
	assert.InDelta(t, tagPenalty, Score("math", "alpha", "", []string{"math"}), 1e-9)
	assert.Equal(t, 1.0, Score("xyz", "", "", nil))
	assert.InDelta(t, 0.2, Score("alpa", "alpha", "", nil), 1e-9)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"fixed", "point", "math", "v2"}, tokenize("Fixed-point  MATH_v2"))
	assert.Empty(t, tokenize(" -- "))
}

type countingLister struct {
	pkgs  []registry.PackageMetadata
	err   error
	calls int
}

func (c *countingLister) AllPackages(context.Context) ([]registry.PackageMetadata, error) {
	c.calls++
	return c.pkgs, c.err
}

func TestLoadUsesCache(t *testing.T) {
	lister := &countingLister{pkgs: fixturePackages()[:2]}
	cache := NewCache(t.TempDir()+"/catalog-test.json", "test", time.Minute)
	c := New(lister, cache, nil)
	ctx := context.Background()

	first, err := c.Load(ctx, false)
	require.NoError(t, err)
	second, err := c.Load(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls)
	assert.Equal(t, first, second)

	_, err = c.Load(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls, "refresh bypasses the cache")

	_, err = c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, lister.calls)
}

func TestLoadError(t *testing.T) {
	boom := errors.New("node down")
	c := New(&countingLister{err: boom}, nil, nil)
	_, err := c.Search(context.Background(), "alpha", Filters{}, false)
	assert.ErrorIs(t, err, boom)
}

func TestLoadFallsBackToStaleCache(t *testing.T) {
	lister := &countingLister{pkgs: fixturePackages()[:2]}
	cache := NewCache(t.TempDir()+"/catalog-test.json", "test", time.Minute)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return start }
	c := New(lister, cache, nil)
	ctx := context.Background()

	fresh, err := c.Load(ctx, false)
	require.NoError(t, err)

	cache.now = func() time.Time { return start.Add(time.Hour) }
	lister.err = errors.New("node down")
	got, err := c.Load(ctx, true)
	require.NoError(t, err)
	require.Len(t, got, len(fresh))
	assert.Equal(t, fresh[0].Name, got[0].Name)
	assert.Equal(t, 2, lister.calls)

	require.NoError(t, cache.Clear())
	_, err = c.Load(ctx, false)
	assert.ErrorIs(t, err, lister.err)
}

func TestSearchAgainstRegistry(t *testing.T) {
	node := ledgertest.New(t)
	node.AddPackage(ledgertest.Package{Name: "alpha", Version: "1.0.0", Kind: "library", Tags: []string{"math"}})
	node.AddPackage(ledgertest.Package{Name: "alpha", Version: "1.1.0", Kind: "library", Tags: []string{"math"}})
	node.AddPackage(ledgertest.Package{Name: "omega", Version: "0.1.0", Kind: "token"})
	chain := ledger.New(ledger.Options{RPCURL: node.URL(), Retries: -1})
	reg := registry.New(chain, "0x5f3c0e9b2a7d4c1e8f6a0b3d9c2e7f1a4b8d6c0e", nil)

	res, err := New(reg, nil, nil).Search(context.Background(), "alpha", Filters{}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "alpha"}, names(*res))
	assert.Equal(t, 1, node.Views("get_all_packages"))
}

func TestRenderSummary(t *testing.T) {
	res := Query(fixturePackages(), "alpha", Filters{})
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, res))
	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "alpha-token")
	assert.Contains(t, out, "Fixed-point math helpers")
	assert.Contains(t, out, "(2 malformed registry entries skipped)")
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, Results{Query: "nothing"}))
	assert.Equal(t, "No packages found matching \"nothing\"\n", buf.String())
}

func TestRenderDetailed(t *testing.T) {
	pkgs := fixturePackages()
	pkgs[0].TotalTips = 150_000_000
	res := Query(pkgs, "math", Filters{})
	var buf bytes.Buffer
	require.NoError(t, RenderDetailed(&buf, res))
	out := buf.String()
	assert.Contains(t, out, "alpha@1.0.0\n")
	assert.Contains(t, out, "math, fixed-point")
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "MIT")
	assert.NotContains(t, out, "Homepage")
}

func TestRenderTruncatesDescription(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 80)
	res := Results{Matches: []Match{{Package: registry.PackageMetadata{Name: "n", Version: "1.0.0", Description: string(long)}}}}
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, res))
	assert.Contains(t, buf.String(), string(long[:57])+"...")
	assert.NotContains(t, buf.String(), string(long[:58]))
}
