package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/goxatu/internal/retry"
	"github.com/ethpandaops/goxatu/internal/testutil"
)

func bidTraceJSON(slot int64, blockHash, value string) string {
	return fmt.Sprintf(`{"slot":"%d","parent_hash":"0xparent","block_hash":"%s","builder_pubkey":"0xbuilder","proposer_pubkey":"0xproposer","proposer_fee_recipient":"0xfee","gas_limit":"30000000","gas_used":"12345678","value":"%s","num_tx":"150","block_number":"19000000","timestamp":"1700000000"}`, slot, blockHash, value)
}

func newRelayServer(t *testing.T, traces ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, bidTracePath, r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("slot"))
		fmt.Fprint(w, "[")
		for i, tr := range traces {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprint(w, tr)
		}
		fmt.Fprint(w, "]")
	}))
	t.Cleanup(server.Close)
	return server
}

func TestBidTraces_MergesAcrossRelays(t *testing.T) {
	a := newRelayServer(t, bidTraceJSON(100, "0xaaa", "1000"))
	b := newRelayServer(t, bidTraceJSON(100, "0xbbb", "2000"), bidTraceJSON(100, "0xccc", "1500"))

	conn := New(Options{
		Endpoints: map[string]string{"alpha": a.URL, "beta": b.URL},
		Logger:    testutil.NewTestLogger(t),
	})

	traces, err := conn.BidTraces(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, traces, 3)

	// Sorted by slot then relay name.
	assert.Equal(t, "alpha", traces[0].Relay)
	assert.Equal(t, "0xaaa", traces[0].BlockHash)
	assert.Equal(t, int64(100), traces[0].Slot)
	assert.Equal(t, uint64(30000000), traces[0].GasLimit)
	assert.Equal(t, "1000", traces[0].Value)
}

func TestBidTraces_RelayFailureFailsCall(t *testing.T) {
	good := newRelayServer(t, bidTraceJSON(100, "0xaaa", "1000"))
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer bad.Close()

	conn := New(Options{
		Endpoints: map[string]string{"good": good.URL, "bad": bad.URL},
		Logger:    testutil.NewTestLogger(t),
	})

	_, err := conn.BidTraces(context.Background(), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay bad")
}

func TestBidTracesPartial_CollectsSurvivors(t *testing.T) {
	good := newRelayServer(t, bidTraceJSON(100, "0xaaa", "1000"))
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer bad.Close()

	conn := New(Options{
		Endpoints: map[string]string{"good": good.URL, "bad": bad.URL},
		Logger:    testutil.NewTestLogger(t),
	})

	traces, failures := conn.BidTracesPartial(context.Background(), 100)
	require.Len(t, traces, 1)
	assert.Equal(t, "good", traces[0].Relay)
	require.Len(t, failures, 1)
	assert.Contains(t, failures, "bad")
}

func TestBidTraces_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "[%s]", bidTraceJSON(100, "0xaaa", "1000"))
	}))
	defer server.Close()

	conn := New(Options{
		Endpoints: map[string]string{"flaky": server.URL},
		Retry:     retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		Logger:    testutil.NewTestLogger(t),
	})

	traces, err := conn.BidTraces(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, traces, 1)
	assert.Equal(t, int64(2), requests.Load())
}

func TestBidTraces_ClientErrorIsFatal(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "bad slot", http.StatusBadRequest)
	}))
	defer server.Close()

	conn := New(Options{
		Endpoints: map[string]string{"strict": server.URL},
		Retry:     retry.Config{MaxRetries: 3, InitialBackoff: time.Millisecond},
		Logger:    testutil.NewTestLogger(t),
	})

	_, err := conn.BidTraces(context.Background(), 100)
	require.Error(t, err)
	assert.Equal(t, int64(1), requests.Load())
}

func TestBidTraces_EmptyResponse(t *testing.T) {
	server := newRelayServer(t)

	conn := New(Options{
		Endpoints: map[string]string{"quiet": server.URL},
		Logger:    testutil.NewTestLogger(t),
	})

	traces, err := conn.BidTraces(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, traces)
}

func TestBidTraces_MinSlotGating(t *testing.T) {
	var lateRequests atomic.Int64
	early := newRelayServer(t, bidTraceJSON(100, "0xaaa", "1000"))
	late := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lateRequests.Add(1)
		fmt.Fprint(w, "[]")
	}))
	defer late.Close()

	conn := New(Options{
		Endpoints: map[string]string{"early": early.URL, "late": late.URL},
		MinSlots:  map[string]int64{"late": 500},
		Logger:    testutil.NewTestLogger(t),
	})

	traces, err := conn.BidTraces(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "early", traces[0].Relay)
	assert.Equal(t, int64(0), lateRequests.Load(), "relay not live at the slot must not be queried")

	// At or past the min slot the relay participates again.
	_, err = conn.BidTraces(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lateRequests.Load())
}

func TestRelays_SortedNames(t *testing.T) {
	conn := New(Options{
		Endpoints: map[string]string{"zeta": "http://z", "alpha": "http://a", "mid": "http://m"},
		Logger:    testutil.NewTestLogger(t),
	})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, conn.Relays())
}
