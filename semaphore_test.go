package strand_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlib/strand"
)

func TestSemaphoreAcquireRelease(t *testing.T) {
	sem := strand.NewSemaphore(2)
	require.Equal(t, 2, sem.Available())

	require.NoError(t, sem.Acquire(context.Background()))
	require.NoError(t, sem.Acquire(context.Background()))
	assert.Equal(t, 0, sem.Available())

	sem.Release()
	sem.Release()
	assert.Equal(t, 2, sem.Available())
}

func TestSemaphoreTryAcquire(t *testing.T) {
	sem := strand.NewSemaphore(1)
	require.True(t, sem.TryAcquire())
	require.False(t, sem.TryAcquire())
	sem.Release()
	require.True(t, sem.TryAcquire())
	sem.Release()
}

func TestSemaphoreAcquireSuspendsWhenFull(t *testing.T) {
	sem := strand.NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	acquired := make(chan struct{})
	go func() {
		if err := sem.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("acquire succeeded on a full semaphore")
	case <-time.After(10 * time.Millisecond):
	}

	sem.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter not handed the released permit")
	}
	sem.Release()
}

func TestSemaphoreBoundsConcurrency(t *testing.T) {
	const limit = 3
	sem := strand.NewSemaphore(limit)

	var active, peak atomic.Int32
	err := strand.Run(context.Background(), func(s *strand.Scope) {
		for range 20 {
			s.Launch("worker", func(ctx context.Context) error {
				return sem.WithPermit(ctx, func() error {
					n := active.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					active.Add(-1)
					return nil
				})
			})
		}
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Equal(t, limit, sem.Available())
}

func TestSemaphoreAcquireCancelled(t *testing.T) {
	sem := strand.NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- sem.Acquire(ctx)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	// The cancelled waiter must not swallow the permit.
	sem.Release()
	require.Equal(t, 1, sem.Available())
}

func TestSemaphoreFIFOHandoff(t *testing.T) {
	sem := strand.NewSemaphore(1)
	require.NoError(t, sem.Acquire(context.Background()))

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	for i := range 3 {
		go func() {
			if err := sem.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			sem.Release()
			done <- struct{}{}
		}()
		// Stagger so the park order is deterministic.
		time.Sleep(10 * time.Millisecond)
	}

	sem.Release()
	for range 3 {
		<-done
	}
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestSemaphorePanics(t *testing.T) {
	require.Panics(t, func() { strand.NewSemaphore(0) })
	require.Panics(t, func() { strand.NewSemaphore(1).Release() })
}
