// Package relay fetches builder bid traces from MEV-Boost relays. Each
// relay exposes the standard data API; the connector fans out across the
// configured relay set, rate-limits per relay, and merges the results.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ethpandaops/goxatu/internal/retry"
)

const bidTracePath = "/relay/v1/data/bidtraces/builder_blocks_received"

// BidTrace is one builder submission reported by a relay. Value is the
// bid in wei as a decimal string; it can exceed uint64.
type BidTrace struct {
	Relay                string `json:"relay"`
	Slot                 int64  `json:"slot,string"`
	ParentHash           string `json:"parent_hash"`
	BlockHash            string `json:"block_hash"`
	BuilderPubkey        string `json:"builder_pubkey"`
	ProposerPubkey       string `json:"proposer_pubkey"`
	ProposerFeeRecipient string `json:"proposer_fee_recipient"`
	GasLimit             uint64 `json:"gas_limit,string"`
	GasUsed              uint64 `json:"gas_used,string"`
	Value                string `json:"value"`
	NumTx                uint64 `json:"num_tx,string"`
	BlockNumber          uint64 `json:"block_number,string"`
	Timestamp            int64  `json:"timestamp,string"`
}

// Options configures a Connector.
type Options struct {
	// Endpoints maps relay name to base URL.
	Endpoints map[string]string

	// MinSlots maps relay name to the first slot it served. Queries for
	// earlier slots skip the relay instead of asking it for data it
	// never had.
	MinSlots map[string]int64

	// RequestsPerSecond paces requests per relay. Zero disables pacing.
	RequestsPerSecond float64

	// Timeout bounds a single relay round-trip.
	Timeout time.Duration

	// Retry is the retry policy for transient relay failures.
	Retry retry.Config

	Logger zerolog.Logger
}

// Connector queries the configured relay set. Safe for concurrent use.
type Connector struct {
	endpoints map[string]string
	minSlots  map[string]int64
	limiters  map[string]*rate.Limiter
	client    *http.Client
	retryCfg  retry.Config
	logger    zerolog.Logger
}

// New creates a connector for the given relay set.
func New(opts Options) *Connector {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limiters := make(map[string]*rate.Limiter, len(opts.Endpoints))
	for name := range opts.Endpoints {
		limit := rate.Inf
		if opts.RequestsPerSecond > 0 {
			limit = rate.Limit(opts.RequestsPerSecond)
		}
		limiters[name] = rate.NewLimiter(limit, 1)
	}

	return &Connector{
		endpoints: opts.Endpoints,
		minSlots:  opts.MinSlots,
		limiters:  limiters,
		client:    &http.Client{Timeout: timeout},
		retryCfg:  opts.Retry,
		logger:    opts.Logger.With().Str("component", "relay").Logger(),
	}
}

// Relays returns the configured relay names, sorted.
func (c *Connector) Relays() []string {
	names := make([]string, 0, len(c.endpoints))
	for name := range c.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BidTraces fetches builder bid traces for one slot from every
// configured relay concurrently. Per-relay failures fail the whole call;
// use BidTracesPartial to collect what succeeded.
func (c *Connector) BidTraces(ctx context.Context, slot int64) ([]BidTrace, error) {
	var mu sync.Mutex
	var traces []BidTrace

	g, ctx := errgroup.WithContext(ctx)
	for name, base := range c.endpoints {
		if c.skipForSlot(name, slot) {
			continue
		}
		g.Go(func() error {
			got, err := c.fetchRelay(ctx, name, base, slot)
			if err != nil {
				return fmt.Errorf("relay %s: %w", name, err)
			}
			mu.Lock()
			traces = append(traces, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortTraces(traces)
	return traces, nil
}

// BidTracesPartial fetches bid traces for one slot, tolerating
// individual relay failures. It returns the merged traces and the
// per-relay errors for relays that failed.
func (c *Connector) BidTracesPartial(ctx context.Context, slot int64) ([]BidTrace, map[string]error) {
	var mu sync.Mutex
	var traces []BidTrace
	failures := make(map[string]error)

	var wg sync.WaitGroup
	for name, base := range c.endpoints {
		if c.skipForSlot(name, slot) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.fetchRelay(ctx, name, base, slot)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[name] = err
				return
			}
			traces = append(traces, got...)
		}()
	}
	wg.Wait()

	sortTraces(traces)
	return traces, failures
}

// skipForSlot reports whether the relay was not yet live at the slot.
func (c *Connector) skipForSlot(name string, slot int64) bool {
	min, ok := c.minSlots[name]
	if !ok || slot >= min {
		return false
	}
	c.logger.Debug().
		Str("relay", name).
		Int64("slot", slot).
		Int64("min_slot", min).
		Msg("relay not live at slot, skipping")
	return true
}

func (c *Connector) fetchRelay(ctx context.Context, name, base string, slot int64) ([]BidTrace, error) {
	if limiter := c.limiters[name]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := base + bidTracePath + "?slot=" + strconv.FormatInt(slot, 10)

	var traces []BidTrace
	err := retry.Do(ctx, c.retryCfg, func() error {
		got, err := c.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		traces = got
		return nil
	}, isTransient)
	if err != nil {
		return nil, err
	}

	for i := range traces {
		traces[i].Relay = name
	}
	c.logger.Debug().
		Str("relay", name).
		Int64("slot", slot).
		Int("traces", len(traces)).
		Msg("fetched bid traces")
	return traces, nil
}

func (c *Connector) fetchOnce(ctx context.Context, url string) ([]BidTrace, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, &transientError{err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var traces []BidTrace
	if err := json.NewDecoder(resp.Body).Decode(&traces); err != nil {
		return nil, fmt.Errorf("decoding bid traces: %w", err)
	}
	return traces, nil
}

func sortTraces(traces []BidTrace) {
	sort.Slice(traces, func(i, j int) bool {
		if traces[i].Slot != traces[j].Slot {
			return traces[i].Slot < traces[j].Slot
		}
		return traces[i].Relay < traces[j].Relay
	})
}

// transientError marks relay failures worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var terr *transientError
	return errors.As(err, &terr)
}
