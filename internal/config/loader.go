package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "GOXATU_CONFIG"

// DefaultPath returns the default config file location,
// ~/.goxatu/config.yaml, honoring the GOXATU_CONFIG override.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".goxatu", "config.yaml"), nil
}

// Load reads the configuration from path, layering file values over the
// defaults and environment variables over both. An empty path resolves
// through DefaultPath; a missing file is not an error, the defaults plus
// environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to environment overrides.
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the loaded values. The
// CLICKHOUSE_* names match the upstream tooling so credentials can be
// shared across clients.
func applyEnv(cfg *Config) {
	setString(&cfg.ClickHouse.URL, "CLICKHOUSE_URL")
	setString(&cfg.ClickHouse.User, "CLICKHOUSE_USER")
	setString(&cfg.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	setString(&cfg.ClickHouse.Database, "CLICKHOUSE_DATABASE")
	setString(&cfg.LogLevel, "GOXATU_LOG_LEVEL")
	setInt(&cfg.ClickHouse.MaxRetries, "GOXATU_MAX_RETRIES")
	setInt(&cfg.ClickHouse.PoolSize, "GOXATU_POOL_SIZE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// WriteTemplate writes a starter config file to path, creating parent
// directories as needed. It refuses to overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("rendering config template: %w", err)
	}

	header := []byte("# goxatu configuration.\n# Credentials may also come from CLICKHOUSE_URL, CLICKHOUSE_USER\n# and CLICKHOUSE_PASSWORD environment variables.\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
