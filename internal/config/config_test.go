package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "./badger_data", cfg.Storage.BadgerPath)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.Browser.Enabled)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1, cfg.Pool.MinIdle)
	assert.Equal(t, 4, cfg.Pool.MaxTotal)
	assert.Equal(t, 5*time.Second, cfg.Pool.BorrowTimeout)
	assert.Equal(t, 10*time.Second, cfg.Scraper.FetchTimeout)
	assert.Equal(t, int64(2<<20), cfg.Scraper.MaxBodyBytes)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 12*time.Hour, cfg.Cache.TTL)
	assert.Empty(t, cfg.Telegram.Token)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
log:
  level: debug
telegram:
  token: "123:abc"
pool:
  min_idle: 0
  max_total: 2
  borrow_timeout: 2s
cache:
  backend: badger
  ttl: 1h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, 0, cfg.Pool.MinIdle)
	assert.Equal(t, 2, cfg.Pool.MaxTotal)
	assert.Equal(t, 2*time.Second, cfg.Pool.BorrowTimeout)
	assert.Equal(t, CacheBadger, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	// Untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Scraper.WaitTimeout)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("JETPREVIEW_POOL_MAX_TOTAL", "8")
	t.Setenv("JETPREVIEW_TELEGRAM_TOKEN", "env-token")
	t.Setenv("JETPREVIEW_CACHE_TTL", "30m")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pool.MaxTotal)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("pool: [unterminated"), 0o600))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	t.Setenv("JETPREVIEW_CACHE_BACKEND", "redis")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.redis_url")
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"no max total", func(c *Config) { c.Pool.MaxTotal = 0 }, "pool.max_total"},
		{"min idle above max", func(c *Config) { c.Pool.MinIdle = 5 }, "pool.min_idle"},
		{"negative min idle", func(c *Config) { c.Pool.MinIdle = -1 }, "pool.min_idle"},
		{"zero wait timeout", func(c *Config) { c.Scraper.WaitTimeout = 0 }, "scraper.wait_timeout"},
		{"negative idle timeout", func(c *Config) { c.Pool.IdleTimeout = -time.Second }, "pool.idle_timeout"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"empty badger path", func(c *Config) { c.Storage.BadgerPath = "" }, "storage.badger_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, validConfig(t).Validate())
}
