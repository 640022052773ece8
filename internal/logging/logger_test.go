package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "chainpkg.log")

	logger, err := New(Config{Level: "error", File: file})
	require.NoError(t, err)

	logger.Info("publish started")
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"message":"publish started"`))
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
	assert.NotNil(t, NewOrNop(Config{Level: "loud"}))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/home/u/.chainpkg")
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, filepath.Join("/home/u/.chainpkg", "logs", "chainpkg.log"), cfg.File)
	assert.Empty(t, DefaultConfig("").File)
}
