package strand_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strandlib/strand"
)

func TestScopeAllSuccess(t *testing.T) {
	var count atomic.Int32
	s := strand.NewScope(context.Background())
	for range 10 {
		s.Launch("task", func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
	}
	require.NoError(t, s.Wait(context.Background()))
	require.Equal(t, int32(10), count.Load())
}

func TestScopeFailureCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	started := make(chan struct{})
	var siblingCancelled atomic.Bool

	s := strand.NewScope(context.Background())
	s.Launch("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		siblingCancelled.Store(true)
		return ctx.Err()
	})
	s.Launch("bad", func(ctx context.Context) error {
		<-started
		return boom
	})

	err := s.Wait(context.Background())
	require.ErrorIs(t, err, boom)
	require.True(t, siblingCancelled.Load())
	require.True(t, strand.IsJobError(err))
}

func TestScopePanicBecomesFailure(t *testing.T) {
	s := strand.NewScope(context.Background())
	s.Launch("panicky", func(ctx context.Context) error {
		panic("kaboom")
	})

	err := s.Wait(context.Background())
	require.Error(t, err)

	var pe *strand.PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "kaboom", pe.Value)
	require.NotEmpty(t, pe.Stack)
}

func TestScopeExternalContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := strand.NewScope(ctx)

	running := make(chan struct{})
	s.Launch("worker", func(ctx context.Context) error {
		close(running)
		<-ctx.Done()
		return ctx.Err()
	})

	<-running
	cancel()

	err := s.Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestScopeCancelWithCause(t *testing.T) {
	s := strand.NewScope(context.Background())
	quit := errors.New("shutting down")

	s.Launch("worker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	s.Cancel(quit)
	err := s.Wait(context.Background())
	require.ErrorIs(t, err, quit)
}

func TestScopeConcurrencyLimit(t *testing.T) {
	const limit = 3
	var active, peak atomic.Int32

	s := strand.NewScope(context.Background(), strand.WithConcurrencyLimit(limit))
	for i := range 20 {
		s.Launch(fmt.Sprintf("task-%d", i), func(ctx context.Context) error {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return nil
		})
	}
	require.NoError(t, s.Wait(context.Background()))
	require.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestScopeLazyLaunch(t *testing.T) {
	var ran atomic.Bool
	s := strand.NewScope(context.Background())
	j := s.Launch("lazy", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}, strand.Lazy())

	time.Sleep(5 * time.Millisecond)
	require.False(t, ran.Load(), "lazy job must not run before Start or Join")

	require.True(t, j.Start())
	require.NoError(t, s.Wait(context.Background()))
	require.True(t, ran.Load())
}

func TestScopeLazyJobStartedByJoin(t *testing.T) {
	var ran atomic.Bool
	s := strand.NewScope(context.Background())
	j := s.Launch("lazy", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}, strand.Lazy())

	require.NoError(t, j.Join(context.Background()))
	require.True(t, ran.Load())
	require.NoError(t, s.Wait(context.Background()))
}

func TestScopeNestedScopes(t *testing.T) {
	var order []string
	var mu sync.Mutex
	note := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	outer := strand.NewScope(context.Background())
	outer.Launch("outer", func(ctx context.Context) error {
		inner := strand.NewScope(ctx)
		inner.Launch("inner-a", func(ctx context.Context) error {
			note("inner-a")
			return nil
		})
		inner.Launch("inner-b", func(ctx context.Context) error {
			note("inner-b")
			return nil
		})
		if err := inner.Wait(ctx); err != nil {
			return err
		}
		note("outer-done")
		return nil
	})

	require.NoError(t, outer.Wait(context.Background()))
	require.Len(t, order, 3)
	require.Equal(t, "outer-done", order[2])
}

func TestScopeRun(t *testing.T) {
	var count atomic.Int32
	err := strand.Run(context.Background(), func(s *strand.Scope) {
		for range 5 {
			s.Launch("task", func(ctx context.Context) error {
				count.Add(1)
				return nil
			})
		}
	})
	require.NoError(t, err)
	require.Equal(t, int32(5), count.Load())
}

func TestScopeRunRepanics(t *testing.T) {
	require.PanicsWithValue(t, "setup failed", func() {
		_ = strand.Run(context.Background(), func(s *strand.Scope) {
			s.Launch("worker", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			})
			panic("setup failed")
		})
	})
}

func TestScopeLaunchViaDispatcher(t *testing.T) {
	pool := strand.NewPoolDispatcher(2)
	pool.Start()
	defer pool.Stop()

	var ran atomic.Bool
	s := strand.NewScope(context.Background())
	s.Launch("pooled", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}, strand.Via(pool))

	require.NoError(t, s.Wait(context.Background()))
	require.True(t, ran.Load())
}

func TestScopeWaitBoundedByContext(t *testing.T) {
	s := strand.NewScope(context.Background())
	release := make(chan struct{})
	s.Launch("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Wait(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The tree was not torn down by the bounded wait.
	close(release)
	require.NoError(t, s.Wait(context.Background()))
}
