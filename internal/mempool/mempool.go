// Package mempool fetches historical mempool observations from the
// Flashbots mempool archive. The archive exposes one JSON file per
// minute; a missing file means no observations for that minute, not an
// error.
package mempool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ethpandaops/goxatu/internal/retry"
)

// Observation is one transaction seen in the public mempool.
type Observation struct {
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Value     string    `json:"value"`
	GasPrice  string    `json:"gasPrice"`
	Nonce     uint64    `json:"nonce"`
	Timestamp time.Time `json:"timestamp"`
}

// Options configures a Connector.
type Options struct {
	// BaseURL is the archive root, e.g. https://mempool-dumpster.flashbots.net.
	BaseURL string

	// Timeout bounds a single archive round-trip.
	Timeout time.Duration

	// Retry is the retry policy for transient archive failures.
	Retry retry.Config

	Logger zerolog.Logger
}

// Connector fetches minute files from the archive. Safe for concurrent
// use.
type Connector struct {
	baseURL  string
	client   *http.Client
	retryCfg retry.Config
	logger   zerolog.Logger
}

// New creates a connector for the given archive.
func New(opts Options) *Connector {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Connector{
		baseURL:  opts.BaseURL,
		client:   &http.Client{Timeout: timeout},
		retryCfg: opts.Retry,
		logger:   opts.Logger.With().Str("component", "mempool").Logger(),
	}
}

// minuteURL returns the archive path for one minute of observations.
func (c *Connector) minuteURL(ts time.Time) string {
	ts = ts.UTC().Truncate(time.Minute)
	return fmt.Sprintf("%s/%04d/%02d/%02d/%02d/%s.json",
		c.baseURL, ts.Year(), ts.Month(), ts.Day(), ts.Hour(),
		ts.Format("2006-01-02T15:04"))
}

// Minute fetches the observations recorded during the minute containing
// ts. A missing archive file yields an empty slice.
func (c *Connector) Minute(ctx context.Context, ts time.Time) ([]Observation, error) {
	url := c.minuteURL(ts)

	var obs []Observation
	err := retry.Do(ctx, c.retryCfg, func() error {
		got, err := c.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		obs = got
		return nil
	}, isTransient)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("url", url).
		Int("observations", len(obs)).
		Msg("fetched mempool minute")
	return obs, nil
}

// Range fetches observations for every minute in the half-open interval
// [start, end), sequentially and in order.
func (c *Connector) Range(ctx context.Context, start, end time.Time) ([]Observation, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("invalid time range [%s, %s)", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	var all []Observation
	for ts := start.UTC().Truncate(time.Minute); ts.Before(end); ts = ts.Add(time.Minute) {
		obs, err := c.Minute(ctx, ts)
		if err != nil {
			return nil, fmt.Errorf("minute %s: %w", ts.Format(time.RFC3339), err)
		}
		all = append(all, obs...)
	}
	return all, nil
}

// HashSet returns the distinct transaction hashes in the observations.
func HashSet(obs []Observation) map[string]bool {
	set := make(map[string]bool, len(obs))
	for _, o := range obs {
		set[o.Hash] = true
	}
	return set
}

func (c *Connector) fetchOnce(ctx context.Context, url string) ([]Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// The archive has no file for quiet minutes.
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &transientError{err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var obs []Observation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, fmt.Errorf("decoding observations: %w", err)
	}
	return obs, nil
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var terr *transientError
	return errors.As(err, &terr)
}
