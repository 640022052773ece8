package catalog

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/chainpkg/chainpkg/internal/logging"
	"github.com/chainpkg/chainpkg/internal/registry"
)

// Lister is the registry read the catalog is built from.
type Lister interface {
	AllPackages(ctx context.Context) ([]registry.PackageMetadata, error)
}

// Filters narrow a query. Zero values disable a filter.
type Filters struct {
	Kind            string `json:"packageType,omitempty"`
	MinEndorsements int    `json:"minEndorsements,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

// Match is one ranked package.
type Match struct {
	Package registry.PackageMetadata `json:"package"`
	Score   float64                  `json:"score"`
}

// Results is the outcome of a query.
type Results struct {
	Query   string  `json:"query,omitempty"`
	Matches []Match `json:"matches"`
	Skipped int     `json:"skipped"`
}

// Packages returns the matched packages in rank order.
func (r Results) Packages() []registry.PackageMetadata {
	out := make([]registry.PackageMetadata, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Package
	}
	return out
}

// Catalog reads the registry's package list, optionally through a Cache.
type Catalog struct {
	lister Lister
	cache  *Cache
	log    *zap.Logger
}

// New returns a catalog over lister. cache may be nil.
func New(lister Lister, cache *Cache, log *zap.Logger) *Catalog {
	return &Catalog{lister: lister, cache: cache, log: logging.OrNop(log)}
}

// FetchAll returns every registered package version with one registry read.
// The cache is neither consulted nor updated.
func (c *Catalog) FetchAll(ctx context.Context) ([]registry.PackageMetadata, error) {
	return c.lister.AllPackages(ctx)
}

// Load returns the package list, from the cache when it is fresh and refresh
// is false. A fetched list is written back to the cache; a failed write is
// only logged. When the fetch fails and an expired snapshot exists, the
// snapshot is served with a warning.
func (c *Catalog) Load(ctx context.Context, refresh bool) ([]registry.PackageMetadata, error) {
	if c.cache != nil && !refresh {
		if pkgs, ok := c.cache.Load(); ok {
			c.log.Debug("catalog served from cache", zap.String("path", c.cache.Path()), zap.Int("packages", len(pkgs)))
			return pkgs, nil
		}
	}
	pkgs, err := c.FetchAll(ctx)
	if err != nil {
		if c.cache == nil {
			return nil, err
		}
		stale, cachedAt, ok := c.cache.LoadStale()
		if !ok {
			return nil, err
		}
		c.log.Warn("registry unreachable, serving stale catalog",
			zap.Time("cached_at", cachedAt),
			zap.Int("packages", len(stale)),
			zap.Error(err))
		return stale, nil
	}
	if c.cache != nil {
		if err := c.cache.Store(pkgs); err != nil {
			c.log.Warn("catalog cache not written", zap.String("path", c.cache.Path()), zap.Error(err))
		}
	}
	return pkgs, nil
}

// Search loads the catalog and runs Query over it.
func (c *Catalog) Search(ctx context.Context, text string, f Filters, refresh bool) (*Results, error) {
	pkgs, err := c.Load(ctx, refresh)
	if err != nil {
		return nil, err
	}
	res := Query(pkgs, text, f)
	if res.Skipped > 0 {
		c.log.Warn("catalog entries skipped", zap.Int("skipped", res.Skipped))
	}
	return &res, nil
}

// Query ranks pkgs against text and then applies f.
//
// An empty text keeps every well-formed entry in registry order. Otherwise
// entries scoring above Threshold are dropped and the rest are ordered by
// score, then endorsement count and total tips (both descending), then name,
// then registry order.
func Query(pkgs []registry.PackageMetadata, text string, f Filters) Results {
	res := Results{Query: strings.TrimSpace(text), Matches: []Match{}}
	for _, p := range pkgs {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Version) == "" {
			res.Skipped++
			continue
		}
		score := Score(res.Query, p.Name, p.Description, p.Tags)
		if score > Threshold {
			continue
		}
		res.Matches = append(res.Matches, Match{Package: p, Score: score})
	}

	if res.Query != "" {
		sort.SliceStable(res.Matches, func(i, j int) bool {
			a, b := res.Matches[i], res.Matches[j]
			if a.Score != b.Score {
				return a.Score < b.Score
			}
			if ea, eb := len(a.Package.Endorsements), len(b.Package.Endorsements); ea != eb {
				return ea > eb
			}
			if a.Package.TotalTips != b.Package.TotalTips {
				return a.Package.TotalTips > b.Package.TotalTips
			}
			return a.Package.Name < b.Package.Name
		})
	}

	res.Matches = f.apply(res.Matches)
	return res
}

func (f Filters) apply(matches []Match) []Match {
	out := matches[:0]
	for _, m := range matches {
		if f.Kind != "" && !strings.EqualFold(m.Package.Kind, f.Kind) {
			continue
		}
		if len(m.Package.Endorsements) < f.MinEndorsements {
			continue
		}
		out = append(out, m)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
