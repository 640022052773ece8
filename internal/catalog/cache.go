package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/platform"
	"github.com/chainpkg/chainpkg/internal/registry"
)

// DefaultTTL is how long a cached catalog is served before a refetch.
const DefaultTTL = 5 * time.Minute

// cachedCatalog is the on-disk form of a cached package list.
type cachedCatalog struct {
	Network  string                     `json:"network"`
	CachedAt time.Time                  `json:"cached_at"`
	Packages []registry.PackageMetadata `json:"packages"`
}

// Cache keeps the last fetched package list of one network on disk.
type Cache struct {
	path    string
	network string
	ttl     time.Duration
	now     func() time.Time
}

// DefaultCachePath returns ~/.chainpkg/cache/catalog-<network>.json.
func DefaultCachePath(network string) string {
	return filepath.Join(config.CacheDir(), "catalog-"+network+".json")
}

// NewCache returns a cache stored at path. A non-positive ttl means
// DefaultTTL.
func NewCache(path, network string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{path: path, network: network, ttl: ttl, now: time.Now}
}

// Path returns the cache file location.
func (c *Cache) Path() string { return c.path }

// Load returns the cached list when the file exists, belongs to the same
// network and is younger than the TTL.
func (c *Cache) Load() ([]registry.PackageMetadata, bool) {
	cc, ok := c.read()
	if !ok || c.now().Sub(cc.CachedAt) > c.ttl {
		return nil, false
	}
	return cc.Packages, true
}

// LoadStale is Load without the TTL check. It also returns when the list
// was cached.
func (c *Cache) LoadStale() ([]registry.PackageMetadata, time.Time, bool) {
	cc, ok := c.read()
	if !ok {
		return nil, time.Time{}, false
	}
	return cc.Packages, cc.CachedAt, true
}

func (c *Cache) read() (*cachedCatalog, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}
	var cc cachedCatalog
	if err := json.Unmarshal(data, &cc); err != nil || cc.Network != c.network {
		return nil, false
	}
	return &cc, true
}

// Store replaces the cached list atomically.
func (c *Cache) Store(pkgs []registry.PackageMetadata) error {
	if pkgs == nil {
		pkgs = []registry.PackageMetadata{}
	}
	data, err := json.Marshal(cachedCatalog{Network: c.network, CachedAt: c.now().UTC(), Packages: pkgs})
	if err != nil {
		return fmt.Errorf("encoding catalog cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), config.DirPerm); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := platform.WriteFileAtomic(c.path, data, config.FilePerm); err != nil {
		return fmt.Errorf("writing catalog cache: %w", err)
	}
	return nil
}

// Clear removes the cache file. A missing file is not an error.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
