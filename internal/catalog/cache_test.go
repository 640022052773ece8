package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpkg/chainpkg/internal/registry"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog-devnet.json")
	c := NewCache(path, "devnet", 0)
	assert.Equal(t, DefaultTTL, c.ttl)

	_, ok := c.Load()
	assert.False(t, ok, "missing file")

	pkgs := []registry.PackageMetadata{{Name: "alpha", Version: "1.0.0", Tags: []string{}, Endorsements: []string{}}}
	require.NoError(t, c.Store(pkgs))
	got, ok := c.Load()
	require.True(t, ok)
	assert.Equal(t, pkgs, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, filepath.Base(path), entries[0].Name())

	require.NoError(t, c.Clear())
	require.NoError(t, c.Clear(), "clearing twice is fine")
	_, ok = c.Load()
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog-devnet.json")
	c := NewCache(path, "devnet", time.Minute)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return start }
	require.NoError(t, c.Store(nil))

	c.now = func() time.Time { return start.Add(30 * time.Second) }
	got, ok := c.Load()
	require.True(t, ok)
	assert.Empty(t, got)

	c.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, ok = c.Load()
	assert.False(t, ok)
}

func TestCacheIsPerNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, NewCache(path, "devnet", time.Minute).Store(nil))

	_, ok := NewCache(path, "mainnet", time.Minute).Load()
	assert.False(t, ok)
}

func TestCacheIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog-devnet.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, ok := NewCache(path, "devnet", time.Minute).Load()
	assert.False(t, ok)
}

func TestDefaultCachePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHAINPKG_HOME", home)
	assert.Equal(t, filepath.Join(home, "cache", "catalog-testnet.json"), DefaultCachePath("testnet"))
}
