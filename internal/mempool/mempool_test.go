package mempool

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

func TestMinuteURL(t *testing.T) {
	c := New(Options{BaseURL: "https://archive.example.com", Logger: testutil.NewTestLogger(t)})

	ts := time.Date(2024, 3, 5, 9, 7, 42, 0, time.UTC)
	assert.Equal(t,
		"https://archive.example.com/2024/03/05/09/2024-03-05T09:07.json",
		c.minuteURL(ts))
}

func TestMinute_ParsesObservations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2024/03/05/09/2024-03-05T09:07.json", r.URL.Path)
		fmt.Fprint(w, `[{"hash":"0xtx1","from":"0xa","to":"0xb","value":"1000","gasPrice":"30","nonce":5},{"hash":"0xtx2","from":"0xc","value":"0"}]`)
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, Logger: testutil.NewTestLogger(t)})
	obs, err := c.Minute(context.Background(), time.Date(2024, 3, 5, 9, 7, 30, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "0xtx1", obs[0].Hash)
	assert.Equal(t, uint64(5), obs[0].Nonce)
	assert.Equal(t, "0xtx2", obs[1].Hash)
}

func TestMinute_MissingFileIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, Logger: testutil.NewTestLogger(t)})
	obs, err := c.Minute(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestMinute_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[{"hash":"0xtx"}]`)
	}))
	defer server.Close()

	c := New(Options{
		BaseURL: server.URL,
		Retry:   retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		Logger:  testutil.NewTestLogger(t),
	})

	obs, err := c.Minute(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, obs, 1)
	assert.Equal(t, int64(2), requests.Load())
}

func TestRange_WalksMinutes(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprintf(w, `[{"hash":"0xtx%d"}]`, len(paths))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, Logger: testutil.NewTestLogger(t)})

	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	obs, err := c.Range(context.Background(), start, start.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Equal(t, []string{
		"/2024/03/05/09/2024-03-05T09:00.json",
		"/2024/03/05/09/2024-03-05T09:01.json",
		"/2024/03/05/09/2024-03-05T09:02.json",
	}, paths)
}

func TestHashSet(t *testing.T) {
	set := HashSet([]Observation{
		{Hash: "0xa"}, {Hash: "0xb"}, {Hash: "0xa"},
	})
	assert.Equal(t, map[string]bool{"0xa": true, "0xb": true}, set)
	assert.Empty(t, HashSet(nil))
}

func TestRange_InvalidInterval(t *testing.T) {
	c := New(Options{BaseURL: "http://localhost:9999", Logger: testutil.NewTestLogger(t)})
	now := time.Now()
	_, err := c.Range(context.Background(), now, now)
	require.Error(t, err)
}
