// Package pool manages a bounded set of reusable HTTP transport handles.
//
// Each Conn owns a dedicated transport so keep-alive reuse is tied to the
// handle, and the pool lends a handle to exactly one in-flight query at a
// time. Callers beyond the ceiling wait until a handle is released; idle
// handles past the staleness threshold are closed and replaced on the
// next acquisition. All idle-set mutation happens under a single mutex so
// size accounting can never go negative or exceed the ceiling.
package pool

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrPoolExhausted is returned when acquisition times out while waiting
// for a free connection.
var ErrPoolExhausted = errors.New("connection pool exhausted")

// ErrPoolClosed is returned for acquisitions after Close.
var ErrPoolClosed = errors.New("connection pool closed")

// Conn is a reusable transport handle. It is owned by the pool while idle
// and by exactly one caller while lent out; it is never shared.
type Conn struct {
	httpClient *http.Client
	transport  *http.Transport
	lastUsed   time.Time
}

// Do executes an HTTP request on this handle.
func (c *Conn) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// close tears down the underlying keep-alive sockets.
func (c *Conn) close() {
	c.transport.CloseIdleConnections()
}

// Config configures a Pool. Zero values select the defaults.
type Config struct {
	// Capacity is the maximum number of concurrently open connections.
	Capacity int

	// IdleTimeout is the staleness threshold: idle connections older than
	// this are closed on the next acquisition instead of reused.
	IdleTimeout time.Duration

	// AcquireTimeout bounds how long Acquire waits on an exhausted pool
	// before failing with ErrPoolExhausted.
	AcquireTimeout time.Duration

	// RequestTimeout is the per-request timeout applied to each handle's
	// HTTP client. Zero means no client-level timeout (the caller's
	// context still applies).
	RequestTimeout time.Duration
}

const (
	defaultCapacity       = 10
	defaultIdleTimeout    = 5 * time.Minute
	defaultAcquireTimeout = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = defaultCapacity
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = defaultAcquireTimeout
	}
	return c
}

type waiter struct {
	ch chan *Conn
}

// Pool is a bounded lend/return pool of Conns.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	idle    []*Conn
	total   int // open connections, idle plus lent
	waiters []*waiter
	closed  bool
}

// New creates a pool. Connections are opened lazily up to the ceiling.
func New(cfg Config) *Pool {
	return &Pool{cfg: cfg.withDefaults()}
}

// newConn builds a fresh handle with its own transport.
func (p *Pool) newConn() *Conn {
	transport := &http.Transport{
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     p.cfg.IdleTimeout,
	}
	return &Conn{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   p.cfg.RequestTimeout,
		},
		transport: transport,
		lastUsed:  time.Now(),
	}
}

// Acquire returns a connection, reusing an idle one, opening a new one
// below the ceiling, or waiting for a release. It fails with
// ErrPoolExhausted when AcquireTimeout elapses while waiting, or with the
// context error on cancellation.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	// Reuse the most recently used idle handle; evict stale ones.
	now := time.Now()
	for len(p.idle) > 0 {
		conn := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if now.Sub(conn.lastUsed) > p.cfg.IdleTimeout {
			conn.close()
			p.total--
			continue
		}
		p.mu.Unlock()
		return conn, nil
	}

	if p.total < p.cfg.Capacity {
		p.total++
		p.mu.Unlock()
		return p.newConn(), nil
	}

	w := &waiter{ch: make(chan *Conn, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case conn := <-w.ch:
		if conn == nil {
			return nil, ErrPoolClosed
		}
		return conn, nil
	case <-timer.C:
		if conn := p.abandonWait(w); conn != nil {
			return conn, nil
		}
		return nil, ErrPoolExhausted
	case <-ctx.Done():
		if conn := p.abandonWait(w); conn != nil {
			p.Release(conn)
		}
		return nil, ctx.Err()
	}
}

// abandonWait removes w from the waiter list. When w is no longer
// listed, whichever of Release, Discard, or Close removed it has
// committed to exactly one send on w.ch, so abandonWait must wait for
// that hand-off; a non-blocking peek could miss a send still in flight
// and strand the handle. Returns the received connection, nil for a
// Close hand-off.
func (p *Pool) abandonWait(w *waiter) *Conn {
	p.mu.Lock()
	for i, other := range p.waiters {
		if other == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return nil
		}
	}
	p.mu.Unlock()

	return <-w.ch
}

// Release returns a healthy connection to the idle set, handing it
// directly to the longest-waiting caller if any.
func (p *Pool) Release(conn *Conn) {
	if conn == nil {
		return
	}
	conn.lastUsed = time.Now()

	p.mu.Lock()
	if p.closed {
		conn.close()
		p.total--
		p.mu.Unlock()
		return
	}
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w.ch <- conn
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// Discard drops a connection that failed mid-use instead of returning it.
// A waiting caller receives a fresh handle so the ceiling stays honest.
func (p *Pool) Discard(conn *Conn) {
	if conn == nil {
		return
	}
	conn.close()

	p.mu.Lock()
	p.total--
	if p.closed || len(p.waiters) == 0 {
		p.mu.Unlock()
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	p.total++
	p.mu.Unlock()
	w.ch <- p.newConn()
}

// Close tears down all idle connections and fails pending and future
// acquisitions. Lent connections are closed as they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, conn := range idle {
		conn.close()
	}
	for _, w := range waiters {
		w.ch <- nil
	}
}

// Stats reports current pool occupancy, for logs and tests.
func (p *Pool) Stats() (open, idle, waiting int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, len(p.idle), len(p.waiters)
}
