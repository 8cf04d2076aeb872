// Package config loads runtime settings. Later sources override earlier
// ones: built-in defaults, an optional YAML file, a .env file and the
// process environment. Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvAddr      = "SHRAMBA_ADDR"
	EnvDBDriver  = "SHRAMBA_DB_DRIVER"
	EnvDB        = "SHRAMBA_DB"
	EnvLogPath   = "SHRAMBA_LOG"
	EnvLogLevel  = "SHRAMBA_LOG_LEVEL"
	EnvLogFormat = "SHRAMBA_LOG_FORMAT"
	EnvSecret    = "SHRAMBA_TOKEN_SECRET"
	EnvMetrics   = "SHRAMBA_METRICS"
)

// Config holds all runtime settings.
type Config struct {
	Addr string `yaml:"addr"`

	Database struct {
		Driver string `yaml:"driver"`
		// DSN is a file path for sqlite and a connection URL for postgres.
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Log struct {
		Path   string `yaml:"path"`
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// TokenSecret signs identity tokens. Empty means use the secret
	// persisted in the database.
	TokenSecret string `yaml:"token_secret"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{Addr: ":8080"}
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "shramba.sqlite3"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Metrics.Enabled = true
	return cfg
}

// Load builds a configuration from defaults, the YAML file at path (if
// path is non-empty), envFile (if it exists) and the environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	readEnv(EnvAddr, &c.Addr)
	readEnv(EnvDBDriver, &c.Database.Driver)
	readEnv(EnvDB, &c.Database.DSN)
	readEnv(EnvLogPath, &c.Log.Path)
	readEnv(EnvLogLevel, &c.Log.Level)
	readEnv(EnvLogFormat, &c.Log.Format)
	readEnv(EnvSecret, &c.TokenSecret)

	if v, ok := os.LookupEnv(EnvMetrics); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvMetrics, v, err)
		}
		c.Metrics.Enabled = enabled
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q (use sqlite or pgx)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address required")
	}
	return nil
}

func readEnv(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
