package clickhouse

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is a network-level failure: dial, reset, timeout. It is
// retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// BackendError is a non-2xx response from the backend. Only the
// rate-limited subtype is retryable; 5xx responses are treated as
// transient backend faults and retried as well.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// RateLimited reports the retryable rate-limit subtype.
func (e *BackendError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

// Retryable reports whether the response indicates a transient condition.
func (e *BackendError) Retryable() bool {
	return e.RateLimited() || e.Status >= 500
}

// ParseError means the response did not match the expected tabular shape.
// It indicates a contract mismatch, not a transient condition, and is
// never retried.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse: " + e.Msg
	}
	return fmt.Sprintf("parse: %s: %v", e.Msg, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// QueryError annotates a failed query with enough context to diagnose it
// without inspecting internals. It wraps the final error unchanged in
// kind.
type QueryError struct {
	Table      string
	Attempts   int
	LastStatus int // zero when no response was received
	Err        error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("query against %s failed after %d attempt(s)", e.Table, e.Attempts)
	if e.LastStatus != 0 {
		msg += fmt.Sprintf(" (last status %d)", e.LastStatus)
	}
	return msg + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsRetryable classifies an error for the retry policy: transport
// failures and transient backend responses retry, everything else is
// fatal.
func IsRetryable(err error) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		return true
	}
	var berr *BackendError
	if errors.As(err, &berr) {
		return berr.Retryable()
	}
	return false
}
