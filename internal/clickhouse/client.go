// Package clickhouse executes compiled queries against the analytics
// backend over its HTTP interface and parses responses into typed rows.
//
// The client orchestrates builder, connection pool, and retry policy: a
// spec is compiled, a pooled handle acquired, the round-trip executed
// under the retry policy, and the handle released exactly once whether
// the call succeeds, fails to parse, or exhausts its retries.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xerrors "github.com/ethpandaops/goxatu/internal/errors"
	"github.com/ethpandaops/goxatu/internal/pool"
	"github.com/ethpandaops/goxatu/internal/query"
	"github.com/ethpandaops/goxatu/internal/retry"
	"github.com/ethpandaops/goxatu/internal/schema"
)

// Options configures a Client. No field may be mutated after New.
type Options struct {
	// URL is the backend base URL, e.g. https://clickhouse.example.com:8443.
	URL      string
	User     string
	Password string
	Database string

	// PoolSize is the connection ceiling.
	PoolSize int

	// AcquireTimeout bounds waiting on an exhausted pool.
	AcquireTimeout time.Duration

	// IdleTimeout is the pool's staleness threshold.
	IdleTimeout time.Duration

	// RequestTimeout bounds a single backend round-trip.
	RequestTimeout time.Duration

	// Retry is the retry policy for transient failures.
	Retry retry.Config

	// PartitionRangeMargin and PartitionSlotMargin widen derived
	// partition windows. Zero selects the builder defaults.
	PartitionRangeMargin time.Duration
	PartitionSlotMargin  time.Duration

	Logger zerolog.Logger
}

// Client is the sole entry point for running queries. Safe for
// concurrent use.
type Client struct {
	opts     Options
	registry *schema.Registry
	builder  *query.Builder
	pool     *pool.Pool
	logger   zerolog.Logger
}

// New creates a client over the given schema registry.
func New(registry *schema.Registry, opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("backend URL is required")
	}
	if !strings.HasPrefix(opts.URL, "http://") && !strings.HasPrefix(opts.URL, "https://") {
		return nil, fmt.Errorf("backend URL %q must start with http:// or https://", opts.URL)
	}
	opts.URL = strings.TrimRight(opts.URL, "/")
	if opts.Database == "" {
		opts.Database = "default"
	}

	builder := query.NewBuilder(registry, query.BuilderOptions{
		RangeMargin: opts.PartitionRangeMargin,
		SlotMargin:  opts.PartitionSlotMargin,
	})

	p := pool.New(pool.Config{
		Capacity:       opts.PoolSize,
		IdleTimeout:    opts.IdleTimeout,
		AcquireTimeout: opts.AcquireTimeout,
		RequestTimeout: opts.RequestTimeout,
	})

	return &Client{
		opts:     opts,
		registry: registry,
		builder:  builder,
		pool:     p,
		logger:   opts.Logger.With().Str("component", "clickhouse").Logger(),
	}, nil
}

// Close tears down the connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Build compiles a spec without executing it, for callers that need the
// SQL text and bound parameters only.
func (c *Client) Build(spec query.Spec) (query.CompiledQuery, error) {
	return c.builder.Build(spec)
}

// Run compiles and executes a spec, returning typed rows.
//
// Validation failures surface before any network activity. Transient
// failures are retried per the configured policy; the final error is
// wrapped in a QueryError carrying table, attempt count, and last
// backend status, with its kind reachable through errors.As.
func (c *Client) Run(ctx context.Context, spec query.Spec) ([]Row, error) {
	compiled, err := c.builder.Build(spec)
	if err != nil {
		return nil, err
	}

	table, _ := c.registry.Table(spec.Table)

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, &QueryError{Table: spec.Table, Attempts: 0, Err: err}
	}

	queryID := uuid.NewString()
	c.logger.Debug().
		Str("query_id", queryID).
		Str("table", spec.Table).
		Str("sql", truncate(compiled.SQL, 200)).
		Msg("executing query")

	var rows []Row
	var lastStatus int

	attempt := func() error {
		result, status, err := c.execute(ctx, conn, compiled, table, queryID)
		if status != 0 {
			lastStatus = status
		}
		if err != nil {
			return err
		}
		rows = result
		return nil
	}

	state, err := retry.DoState(ctx, c.opts.Retry, attempt, IsRetryable)

	// The handle goes back to the pool exactly once. A parse failure
	// after a successful round-trip still releases; only a transport
	// fault on the final attempt discards the handle.
	var terr *TransportError
	if err != nil && errors.As(err, &terr) {
		c.pool.Discard(conn)
	} else {
		c.pool.Release(conn)
	}

	if err != nil {
		c.logger.Debug().
			Str("query_id", queryID).
			Int("attempts", state.Attempts).
			Err(err).
			Msg("query failed")
		return nil, &QueryError{
			Table:      spec.Table,
			Attempts:   state.Attempts,
			LastStatus: lastStatus,
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("query_id", queryID).
		Int("rows", len(rows)).
		Int("attempts", state.Attempts).
		Msg("query succeeded")
	return rows, nil
}

// execute performs one round-trip. It returns the parsed rows, the HTTP
// status if a response was received, and the classified error.
func (c *Client) execute(ctx context.Context, conn *pool.Conn, compiled query.CompiledQuery, table schema.Table, queryID string) ([]Row, int, error) {
	params := url.Values{}
	params.Set("query", compiled.SQL)
	params.Set("database", c.opts.Database)
	params.Set("default_format", "JSONEachRow")
	params.Set("query_id", queryID)
	for name, value := range compiled.Params {
		params.Set("param_"+name, value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, &TransportError{Err: err}
	}
	if c.opts.User != "" {
		req.SetBasicAuth(c.opts.User, c.opts.Password)
	}

	resp, err := conn.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Err: err}
	}
	defer xerrors.DeferClose(c.logger, resp.Body, "closing response body")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, &BackendError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	rows, err := parseRows(resp.Body, table)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return rows, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
