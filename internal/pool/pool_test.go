package pool

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(capacity int) *Pool {
	return New(Config{
		Capacity:       capacity,
		IdleTimeout:    time.Minute,
		AcquireTimeout: 200 * time.Millisecond,
	})
}

func TestAcquire_LazyUpToCapacity(t *testing.T) {
	p := testPool(3)
	defer p.Close()

	conns := make([]*Conn, 0, 3)
	for i := 0; i < 3; i++ {
		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		conns = append(conns, conn)
	}

	open, idle, waiting := p.Stats()
	assert.Equal(t, 3, open)
	assert.Equal(t, 0, idle)
	assert.Equal(t, 0, waiting)

	for _, conn := range conns {
		p.Release(conn)
	}
	open, idle, _ = p.Stats()
	assert.Equal(t, 3, open)
	assert.Equal(t, 3, idle)
}

func TestAcquire_ReusesIdleConnection(t *testing.T) {
	p := testPool(2)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn)

	again, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, conn, again)
	p.Release(again)
}

func TestAcquire_BlocksAtCeilingAndReleaseUnblocksOne(t *testing.T) {
	p := New(Config{
		Capacity:       1,
		IdleTimeout:    time.Minute,
		AcquireTimeout: 5 * time.Second,
	})
	defer p.Close()

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	const blocked = 3
	got := make(chan *Conn, blocked)
	var wg sync.WaitGroup
	for i := 0; i < blocked; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := p.Acquire(context.Background())
			if err == nil {
				got <- conn
			}
		}()
	}

	// All callers must be suspended while the single handle is lent out.
	time.Sleep(50 * time.Millisecond)
	_, _, waiting := p.Stats()
	assert.Equal(t, blocked, waiting)
	assert.Empty(t, got)

	// Releasing unblocks exactly one caller, no double-hand-out.
	p.Release(held)
	var first *Conn
	select {
	case first = <-got:
	case <-time.After(time.Second):
		t.Fatal("release did not unblock a waiter")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, got, "only one waiter may be unblocked per release")

	open, _, _ := p.Stats()
	assert.Equal(t, 1, open, "ceiling must hold")

	// Drain the rest.
	p.Release(first)
	second := <-got
	p.Release(second)
	third := <-got
	p.Release(third)
	wg.Wait()
}

func TestAcquire_TimeoutReturnsPoolExhausted(t *testing.T) {
	p := New(Config{
		Capacity:       1,
		IdleTimeout:    time.Minute,
		AcquireTimeout: 30 * time.Millisecond,
	})
	defer p.Close()

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(held)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolExhausted)

	_, _, waiting := p.Stats()
	assert.Equal(t, 0, waiting, "timed-out waiter must be removed")
}

func TestAcquire_ContextCancellation(t *testing.T) {
	p := New(Config{
		Capacity:       1,
		IdleTimeout:    time.Minute,
		AcquireTimeout: 5 * time.Second,
	})
	defer p.Close()

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(held)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDiscard_ReplacesForWaiter(t *testing.T) {
	p := New(Config{
		Capacity:       1,
		IdleTimeout:    time.Minute,
		AcquireTimeout: 5 * time.Second,
	})
	defer p.Close()

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	got := make(chan *Conn, 1)
	go func() {
		conn, err := p.Acquire(context.Background())
		if err == nil {
			got <- conn
		}
	}()
	time.Sleep(50 * time.Millisecond)

	p.Discard(held)

	select {
	case conn := <-got:
		assert.NotSame(t, held, conn, "waiter must get a fresh handle, not the broken one")
		p.Release(conn)
	case <-time.After(time.Second):
		t.Fatal("discard did not hand a replacement to the waiter")
	}

	open, _, _ := p.Stats()
	assert.Equal(t, 1, open)
}

func TestDiscard_DecrementsWithoutWaiters(t *testing.T) {
	p := testPool(2)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Discard(conn)

	open, idle, _ := p.Stats()
	assert.Equal(t, 0, open)
	assert.Equal(t, 0, idle)
}

func TestAcquire_EvictsStaleIdle(t *testing.T) {
	p := New(Config{
		Capacity:       2,
		IdleTimeout:    10 * time.Millisecond,
		AcquireTimeout: time.Second,
	})
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn)

	time.Sleep(30 * time.Millisecond)

	fresh, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, conn, fresh, "stale idle handle must be replaced")

	open, _, _ := p.Stats()
	assert.Equal(t, 1, open)
	p.Release(fresh)
}

func TestClose_FailsPendingAndFutureAcquires(t *testing.T) {
	p := New(Config{
		Capacity:       1,
		IdleTimeout:    time.Minute,
		AcquireTimeout: 5 * time.Second,
	})

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond)

	p.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("close did not fail the pending acquire")
	}

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	p.Release(held) // released after close, closed quietly
	open, idle, _ := p.Stats()
	assert.Equal(t, 0, open)
	assert.Equal(t, 0, idle)
}

func TestAbandonWait_WaitsForHandOffInFlight(t *testing.T) {
	p := testPool(1)
	defer p.Close()

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	w := &waiter{ch: make(chan *Conn, 1)}
	p.mu.Lock()
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	// Mimic Release racing the abandon: the waiter is removed from the
	// list under the lock, but the hand-off lands on the channel a beat
	// later. abandonWait must receive it rather than return empty-handed
	// and strand the connection.
	go func() {
		p.mu.Lock()
		p.waiters = nil
		p.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		w.ch <- held
	}()

	time.Sleep(10 * time.Millisecond)
	got := p.abandonWait(w)
	assert.Same(t, held, got)
	p.Release(got)
}

func TestAcquire_CancelRacingReleaseDoesNotLeak(t *testing.T) {
	p := New(Config{
		Capacity:       1,
		IdleTimeout:    time.Minute,
		AcquireTimeout: 5 * time.Second,
	})
	defer p.Close()

	for i := 0; i < 2000; i++ {
		held, err := p.Acquire(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			conn, err := p.Acquire(ctx)
			if err == nil {
				p.Release(conn)
			}
		}()

		for {
			if _, _, waiting := p.Stats(); waiting == 1 {
				break
			}
			runtime.Gosched()
		}

		go cancel()
		p.Release(held)
		<-done
		cancel()
	}

	open, idle, waiting := p.Stats()
	assert.Equal(t, open, idle, "every handle must be back in the idle set")
	assert.Equal(t, 0, waiting)
	assert.LessOrEqual(t, open, 1)
}

func TestConcurrentAcquireRelease_AccountingHolds(t *testing.T) {
	const capacity = 4
	p := New(Config{
		Capacity:       capacity,
		IdleTimeout:    time.Minute,
		AcquireTimeout: 5 * time.Second,
	})
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				conn, err := p.Acquire(context.Background())
				if err != nil {
					t.Error(err)
					return
				}
				open, _, _ := p.Stats()
				if open > capacity {
					t.Errorf("pool exceeded ceiling: %d > %d", open, capacity)
				}
				p.Release(conn)
			}
		}()
	}
	wg.Wait()

	open, idle, waiting := p.Stats()
	assert.LessOrEqual(t, open, capacity)
	assert.Equal(t, open, idle)
	assert.Equal(t, 0, waiting)
}
