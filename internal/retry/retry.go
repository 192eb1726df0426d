// Package retry implements bounded retry with exponential backoff and
// jitter around a single attempt function.
//
// The policy is a plain value: it holds no transport state, so it is
// independently testable and safe to share across concurrent calls. A
// classification function decides whether a failure is transient; fatal
// failures abort immediately without consuming a retry.
//
// Backoff before retry n (n starting at 1) is
// InitialBackoff * 2^(n-1) + jitter, capped at MaxBackoff. Context
// cancellation during an attempt or a backoff sleep ends the call
// immediately with the context error; a timeout spent sleeping never
// blocks cleanup.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Config defines the retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// attempt function runs at most MaxRetries+1 times. Zero is valid and
	// means a single attempt with no retry.
	MaxRetries int

	// InitialBackoff is the base backoff duration before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Zero means no cap.
	MaxBackoff time.Duration

	// Jitter adds up to Jitter*backoff of random extra delay (0.0 to 1.0)
	// to spread out simultaneous retries. Zero means no jitter.
	Jitter float64
}

// DefaultConfig mirrors the backend client defaults: three retries
// starting at 500ms, capped at 10s, with 20% jitter.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Jitter:         0.2,
	}
}

// ShouldRetryFunc classifies an error: true means transient and worth
// retrying, false means fatal. A nil classifier retries every error.
type ShouldRetryFunc func(error) bool

// State reports how an execution went. It is created per call and
// discarded afterwards.
type State struct {
	// Attempts is the total number of times the attempt function ran.
	Attempts int
	// LastErr is the error from the final attempt, nil on success.
	LastErr error
}

// Do runs fn with the configured retry policy and returns the final
// error, nil on success. See DoState for attempt accounting.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	_, err := DoState(ctx, cfg, fn, shouldRetry)
	return err
}

// DoState runs fn up to cfg.MaxRetries+1 times and returns the execution
// state alongside the final error.
//
// A fatal (non-retryable) error is returned unwrapped so the caller sees
// its kind unchanged. A transient error that survives all retries is
// wrapped with the attempt count; errors.Is/As still reach the cause.
func DoState(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) (State, error) {
	state := State{}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffDuration(cfg, attempt)
			select {
			case <-ctx.Done():
				state.LastErr = ctx.Err()
				return state, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := ctx.Err(); err != nil {
			state.LastErr = err
			return state, err
		}

		state.Attempts++
		err := fn()
		if err == nil {
			state.LastErr = nil
			return state, nil
		}
		state.LastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			return state, err
		}
	}

	return state, fmt.Errorf("failed after %d attempts: %w", state.Attempts, state.LastErr)
}

// backoffDuration computes the sleep before retry n (n >= 1).
func backoffDuration(cfg Config, attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	backoff := time.Duration(multiplier * float64(cfg.InitialBackoff))

	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	if cfg.Jitter > 0 {
		backoff += time.Duration(float64(backoff) * cfg.Jitter * rand.Float64())
	}

	return backoff
}
