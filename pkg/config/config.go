package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "PROCTAB_"

var DefaultConfig = Config{
	Workers:  1,
	LogLevel: "INFO",
	Identity: IdentityConfig{
		CacheSize: 256,
		CacheTTL:  5 * time.Minute,
	},
	Sessions: SessionsConfig{
		Driver: "postgres",
	},
	Prometheus: PrometheusConfig{
		Port: 9464,
		Path: "/metrics",
	},
}

type Config struct {
	// ProcRoot overrides where /proc is read from. Empty means $HOST_PROC or
	// /proc.
	ProcRoot string `yaml:"proc_root" env:"PROC_ROOT"`
	// Workers bounds how many processes are read concurrently.
	Workers  int    `yaml:"workers" env:"WORKERS"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	Identity   IdentityConfig   `yaml:"identity" envPrefix:"IDENTITY_"`
	Sessions   SessionsConfig   `yaml:"sessions" envPrefix:"SESSIONS_"`
	Prometheus PrometheusConfig `yaml:"prometheus" envPrefix:"PROMETHEUS_"`
	Store      StoreConfig      `yaml:"store" envPrefix:"STORE_"`
}

// IdentityConfig sizes the uid to username cache.
type IdentityConfig struct {
	CacheSize int           `yaml:"cache_size" env:"CACHE_SIZE"`
	CacheTTL  time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// SessionsConfig points at a session registry that lists the pids to
// sample. An empty DSN disables it.
type SessionsConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`
	Query  string `yaml:"query" env:"QUERY"`
}

func (s SessionsConfig) Enabled() bool { return s.DSN != "" }

type PrometheusConfig struct {
	Port int    `yaml:"port" env:"PORT"`
	Path string `yaml:"path" env:"PATH"`
}

// StoreConfig enables the SQLite snapshot sink when Path is set.
type StoreConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return ConfigError("workers must be at least 1")
	}
	if _, err := c.SlogLevel(); err != nil {
		return ConfigError(fmt.Sprintf("invalid log_level %q", c.LogLevel))
	}
	if c.Identity.CacheSize < 1 {
		return ConfigError("identity.cache_size must be at least 1")
	}
	if c.Identity.CacheTTL < 0 {
		return ConfigError("identity.cache_ttl must not be negative")
	}
	switch c.Sessions.Driver {
	case "postgres", "sqlite3":
	default:
		return ConfigError(fmt.Sprintf("unsupported sessions.driver %q (postgres, sqlite3)", c.Sessions.Driver))
	}
	if c.Prometheus.Port < 1 || c.Prometheus.Port > 65535 {
		return ConfigError(fmt.Sprintf("invalid prometheus.port %d", c.Prometheus.Port))
	}
	if c.Prometheus.Path == "" || c.Prometheus.Path[0] != '/' {
		return ConfigError(fmt.Sprintf("prometheus.path %q must start with /", c.Prometheus.Path))
	}
	return nil
}

// SlogLevel parses LogLevel (DEBUG, INFO, WARN, ERROR, any case).
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.LogLevel))
	return lvl, err
}

// LoadConfig overrides configuration in the following order (from less to most priority)
// 1 - DefaultConfig
// 2 - Contents of the provided file reader (nillable)
// 3 - A .env file in the working directory, if any
// 4 - Environment variables prefixed with PROCTAB_
func LoadConfig(file io.Reader) (*Config, error) {
	cfg := DefaultConfig
	if file != nil {
		cfgBuf, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(cfgBuf, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}
	// variables already set in the environment win over the .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("reading env vars: %w", err)
	}
	return &cfg, nil
}
