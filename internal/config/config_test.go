package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namecache/internal/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	mode, err := cfg.Names.DisplayMode()
	require.NoError(t, err)
	assert.Equal(t, models.ModeSmart, mode)
	assert.Equal(t, 5*time.Second, cfg.Names.WaitTimeout)
	assert.Equal(t, 48*time.Hour, cfg.Names.MaxAge)
	assert.Equal(t, 100, cfg.Resolver.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Resolver.BatchWindow)
	assert.Equal(t, 20, cfg.Resolver.RateCapacity)
	assert.Equal(t, 5, cfg.Resolver.RateRefill)
	assert.Equal(t, 30*time.Second, cfg.Cache.FlushInterval)
	assert.Equal(t, "file", cfg.Cache.Backend)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
names:
  mode: standard
resolver:
  batch_window: 250ms
cache:
  path: /tmp/names.cache
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	mode, err := cfg.Names.DisplayMode()
	require.NoError(t, err)
	assert.Equal(t, models.ModeStandard, mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Resolver.BatchWindow)
	assert.Equal(t, "/tmp/names.cache", cfg.Cache.Path)
	assert.Equal(t, 100, cfg.Resolver.BatchSize)
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("names:\n  mode: fancy\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
