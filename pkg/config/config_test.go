package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inEmptyDir runs the test from a directory without a .env file.
func inEmptyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	inEmptyDir(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig, *cfg)
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Sessions.Enabled())
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := inEmptyDir(t)
	yml := `
proc_root: /host/proc
workers: 4
log_level: debug
identity:
  cache_size: 64
  cache_ttl: 30s
sessions:
  driver: sqlite3
  dsn: /var/lib/app/sessions.db
  query: SELECT pid FROM sessions
prometheus:
  port: 9100
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("PROCTAB_WORKERS=6\nPROCTAB_STORE_PATH=/tmp/from-dotenv.db\n"), 0o644))
	t.Setenv("PROCTAB_WORKERS", "8")
	t.Setenv("PROCTAB_PROMETHEUS_PATH", "/custom")

	t.Cleanup(func() { _ = os.Unsetenv("PROCTAB_STORE_PATH") })

	cfg, err := LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)

	assert.Equal(t, "/host/proc", cfg.ProcRoot)
	assert.Equal(t, 8, cfg.Workers, "environment beats .env and YAML")
	assert.Equal(t, "/tmp/from-dotenv.db", cfg.Store.Path, ".env fills unset variables")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 64, cfg.Identity.CacheSize)
	assert.Equal(t, 30*time.Second, cfg.Identity.CacheTTL)
	assert.Equal(t, "sqlite3", cfg.Sessions.Driver)
	assert.True(t, cfg.Sessions.Enabled())
	assert.Equal(t, 9100, cfg.Prometheus.Port)
	assert.Equal(t, "/custom", cfg.Prometheus.Path)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Errors(t *testing.T) {
	inEmptyDir(t)

	_, err := LoadConfig(strings.NewReader("workers: [1, 2"))
	require.Error(t, err)

	t.Setenv("PROCTAB_WORKERS", "many")
	_, err = LoadConfig(nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"workers":    func(c *Config) { c.Workers = 0 },
		"log_level":  func(c *Config) { c.LogLevel = "chatty" },
		"cache_size": func(c *Config) { c.Identity.CacheSize = 0 },
		"cache_ttl":  func(c *Config) { c.Identity.CacheTTL = -time.Second },
		"driver":     func(c *Config) { c.Sessions.Driver = "mysql" },
		"port":       func(c *Config) { c.Prometheus.Port = 70000 },
		"path":       func(c *Config) { c.Prometheus.Path = "metrics" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig
			mutate(&cfg)
			var cerr ConfigError
			require.ErrorAs(t, cfg.Validate(), &cerr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := DefaultConfig
	for in, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR"} {
		cfg.LogLevel = in
		lvl, err := cfg.SlogLevel()
		require.NoError(t, err)
		assert.Equal(t, want, lvl.String())
	}
}
