// Package goxatu is the top-level client for beacon-chain telemetry
// data. It wires the schema registry, query client, typed query modules,
// and external connectors behind a single handle.
package goxatu

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ethpandaops/goxatu/internal/chaintime"
	"github.com/ethpandaops/goxatu/internal/clickhouse"
	"github.com/ethpandaops/goxatu/internal/config"
	"github.com/ethpandaops/goxatu/internal/logging"
	"github.com/ethpandaops/goxatu/internal/mempool"
	"github.com/ethpandaops/goxatu/internal/queries"
	"github.com/ethpandaops/goxatu/internal/query"
	"github.com/ethpandaops/goxatu/internal/relay"
	"github.com/ethpandaops/goxatu/internal/retry"
	"github.com/ethpandaops/goxatu/internal/schema"
)

// Aliases so callers outside the module can name the core types without
// reaching into internal packages.
type (
	Spec      = query.Spec
	SlotRange = query.SlotRange
	TimeRange = query.TimeRange
	Condition = query.Condition
	Row       = clickhouse.Row
	Filter    = queries.Filter
	Network   = chaintime.Network
)

// Supported networks.
const (
	Mainnet = chaintime.Mainnet
	Sepolia = chaintime.Sepolia
	Holesky = chaintime.Holesky
)

// Client is the facade over the full dataset. Construct with New; safe
// for concurrent use.
type Client struct {
	cfg      config.Config
	registry *schema.Registry
	backend  *clickhouse.Client
	logger   zerolog.Logger

	Slots        *queries.Slots
	Duties       *queries.Duties
	Attestations *queries.Attestations
	Transactions *queries.Transactions
	Withdrawals  *queries.Withdrawals
	Blobs        *queries.Blobs
	Relays       *relay.Connector
	Mempool      *mempool.Connector
}

// New creates a client from the given configuration.
func New(cfg config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel})

	registry, err := schema.Load()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	backend, err := clickhouse.New(registry, clickhouse.Options{
		URL:            cfg.ClickHouse.URL,
		User:           cfg.ClickHouse.User,
		Password:       cfg.ClickHouse.Password,
		Database:       cfg.ClickHouse.Database,
		PoolSize:       cfg.ClickHouse.PoolSize,
		AcquireTimeout: cfg.ClickHouse.AcquireTimeout(),
		RequestTimeout: cfg.ClickHouse.Timeout(),
		Retry: retry.Config{
			MaxRetries:     cfg.ClickHouse.MaxRetries,
			InitialBackoff: retry.DefaultConfig().InitialBackoff,
			MaxBackoff:     retry.DefaultConfig().MaxBackoff,
			Jitter:         retry.DefaultConfig().Jitter,
		},
		PartitionRangeMargin: cfg.ClickHouse.PartitionMargin(),
		Logger:               logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:      cfg,
		registry: registry,
		backend:  backend,
		logger:   logger,

		Slots:        queries.NewSlots(backend, logger),
		Duties:       queries.NewDuties(backend, logger),
		Attestations: queries.NewAttestations(backend, logger),
		Transactions: queries.NewTransactions(backend, logger),
		Withdrawals:  queries.NewWithdrawals(backend, logger),
		Blobs:        queries.NewBlobs(backend, logger),
		Relays: relay.New(relay.Options{
			Endpoints:         cfg.Relay.Endpoints,
			MinSlots:          cfg.Relay.MinSlots,
			RequestsPerSecond: cfg.Relay.RequestsPerSecond,
			Timeout:           cfg.Relay.Timeout(),
			Retry:             retry.Config{MaxRetries: cfg.Relay.MaxRetries, InitialBackoff: retry.DefaultConfig().InitialBackoff},
			Logger:            logger,
		}),
		Mempool: mempool.New(mempool.Options{
			BaseURL: cfg.Mempool.FlashbotsURL,
			Timeout: cfg.Mempool.Timeout(),
			Retry:   retry.Config{MaxRetries: cfg.Mempool.MaxRetries, InitialBackoff: retry.DefaultConfig().InitialBackoff},
			Logger:  logger,
		}),
	}, nil
}

// Load creates a client from the config file at path, resolving the
// default location when path is empty.
func Load(path string) (*Client, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Close releases the backend connection pool.
func (c *Client) Close() {
	c.backend.Close()
}

// Registry exposes the table schema registry.
func (c *Client) Registry() *schema.Registry {
	return c.registry
}

// Run compiles and executes an ad-hoc query spec, returning raw rows.
// Prefer the typed modules when one covers the table.
func (c *Client) Run(ctx context.Context, spec query.Spec) ([]clickhouse.Row, error) {
	return c.backend.Run(ctx, spec)
}

// Build compiles a spec without executing it.
func (c *Client) Build(spec query.Spec) (query.CompiledQuery, error) {
	return c.backend.Build(spec)
}

// mempoolLookback extends the mempool scan window before the first
// slot: a transaction can sit in the mempool for a while before a block
// includes it.
const mempoolLookback = 5 * time.Minute

// PrivateTransactions returns the transactions included in canonical
// blocks over [r.Start, r.End) that never appeared in the public
// mempool archive. Everything not observed publicly is treated as
// privately submitted (builder or relay order flow).
func (c *Client) PrivateTransactions(ctx context.Context, network Network, r SlotRange) ([]queries.Transaction, error) {
	txs, err := c.Transactions.InBlocks(ctx, Filter{Range: &r, Network: network})
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}

	start, err := chaintime.SlotTime(network, r.Start)
	if err != nil {
		return nil, err
	}
	end, err := chaintime.SlotTime(network, r.End)
	if err != nil {
		return nil, err
	}

	obs, err := c.Mempool.Range(ctx, start.Add(-mempoolLookback), end)
	if err != nil {
		return nil, err
	}
	observed := mempool.HashSet(obs)

	var private []queries.Transaction
	for _, tx := range txs {
		if !observed[tx.Hash] {
			private = append(private, tx)
		}
	}
	return private, nil
}
