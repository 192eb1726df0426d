// Package config loads and validates the client configuration from a
// YAML file with environment variable overrides. Configuration is
// immutable once loaded.
package config

import (
	"fmt"
	"strings"
	"time"
)

// ClickHouse holds backend connection settings.
type ClickHouse struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// TimeoutSeconds bounds a single backend round-trip.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`

	// PoolSize is the connection ceiling.
	PoolSize int `yaml:"pool_size"`

	// AcquireTimeoutSeconds bounds waiting on an exhausted pool.
	AcquireTimeoutSeconds int `yaml:"acquire_timeout_seconds"`

	// PartitionMarginMinutes widens derived partition windows on each
	// side of a slot-range query.
	PartitionMarginMinutes int `yaml:"partition_margin_minutes"`
}

// Timeout returns the round-trip timeout as a duration.
func (c ClickHouse) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AcquireTimeout returns the pool acquisition timeout as a duration.
func (c ClickHouse) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutSeconds) * time.Second
}

// PartitionMargin returns the partition window margin as a duration.
func (c ClickHouse) PartitionMargin() time.Duration {
	return time.Duration(c.PartitionMarginMinutes) * time.Minute
}

// Relay holds MEV relay connector settings.
type Relay struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`

	// RequestsPerSecond paces requests per relay endpoint.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Endpoints maps relay name to base URL.
	Endpoints map[string]string `yaml:"endpoints"`

	// MinSlots maps relay name to the first mainnet slot it served.
	MinSlots map[string]int64 `yaml:"min_slots"`
}

// Timeout returns the relay request timeout as a duration.
func (r Relay) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Mempool holds mempool connector settings.
type Mempool struct {
	FlashbotsURL   string `yaml:"flashbots_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the mempool request timeout as a duration.
func (m Mempool) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Config is the full client configuration.
type Config struct {
	ClickHouse ClickHouse `yaml:"clickhouse"`
	Relay      Relay      `yaml:"relay"`
	Mempool    Mempool    `yaml:"mempool"`
	LogLevel   string     `yaml:"log_level"`
}

// Default returns the configuration defaults. Relay endpoints and
// minimum active slots follow the public MEV-Boost relay set.
func Default() Config {
	return Config{
		ClickHouse: ClickHouse{
			User:                   "default",
			Database:               "default",
			TimeoutSeconds:         1500,
			MaxRetries:             3,
			PoolSize:               10,
			AcquireTimeoutSeconds:  30,
			PartitionMarginMinutes: 60,
		},
		Relay: Relay{
			TimeoutSeconds:    30,
			MaxRetries:        3,
			RequestsPerSecond: 4,
			Endpoints: map[string]string{
				"flashbots":            "https://boost-relay.flashbots.net",
				"bloxroute_regulated":  "https://bloxroute.regulated.blxrbdn.com",
				"bloxroute_max_profit": "https://bloxroute.max-profit.blxrbdn.com",
				"ultra_sound":          "https://relay.ultrasound.money",
				"agnostic":             "https://agnostic-relay.net",
				"aestus":               "https://mainnet.aestus.live",
				"manifold":             "https://mainnet-relay.securerpc.com",
				"titan":                "https://titanrelay.xyz",
			},
			MinSlots: map[string]int64{
				"flashbots":            4700567,
				"bloxroute_regulated":  4701043,
				"bloxroute_max_profit": 4700937,
				"ultra_sound":          5216345,
				"agnostic":             5238007,
				"aestus":               5303933,
				"manifold":             4810000,
				"titan":                8280000,
			},
		},
		Mempool: Mempool{
			FlashbotsURL:   "https://mempool-dumpster.flashbots.net",
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for shape errors. The ClickHouse URL
// is required; everything else has usable defaults.
func (c Config) Validate() error {
	ch := c.ClickHouse
	if ch.URL == "" {
		return fmt.Errorf("clickhouse.url is required")
	}
	if !strings.HasPrefix(ch.URL, "http://") && !strings.HasPrefix(ch.URL, "https://") {
		return fmt.Errorf("clickhouse.url %q must start with http:// or https://", ch.URL)
	}
	if ch.MaxRetries < 0 || ch.MaxRetries > 10 {
		return fmt.Errorf("clickhouse.max_retries must be between 0 and 10, got %d", ch.MaxRetries)
	}
	if ch.PoolSize < 1 || ch.PoolSize > 100 {
		return fmt.Errorf("clickhouse.pool_size must be between 1 and 100, got %d", ch.PoolSize)
	}
	if ch.TimeoutSeconds < 1 {
		return fmt.Errorf("clickhouse.timeout_seconds must be positive, got %d", ch.TimeoutSeconds)
	}
	if ch.PartitionMarginMinutes < 0 {
		return fmt.Errorf("clickhouse.partition_margin_minutes cannot be negative, got %d", ch.PartitionMarginMinutes)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}
