package errors

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	closer := &mockCloser{}
	DeferClose(logger, closer, "closing response body")
	assert.True(t, closer.closed)
	assert.Empty(t, buf.String())

	failing := &mockCloser{closeErr: errors.New("already closed")}
	DeferClose(logger, failing, "closing response body")
	assert.True(t, failing.closed)
	assert.Contains(t, buf.String(), "closing response body")
	assert.Contains(t, buf.String(), "already closed")
}

func TestDeferClose_NilCloser(t *testing.T) {
	assert.NotPanics(t, func() {
		DeferClose(zerolog.Nop(), nil, "noop")
	})
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil, "fine") })
	assert.PanicsWithValue(t, "broken: boom", func() {
		Must(errors.New("boom"), "broken")
	})
}
