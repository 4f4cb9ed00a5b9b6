package strand_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlib/strand"
)

func TestForEach(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var sum atomic.Int64

	err := strand.ForEach(context.Background(), items, func(ctx context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), sum.Load())
}

func TestForEachEmpty(t *testing.T) {
	err := strand.ForEach(context.Background(), []string{}, func(ctx context.Context, s string) error {
		t.Error("must not be called")
		return nil
	})
	require.NoError(t, err)
}

func TestForEachFailureCancelsRest(t *testing.T) {
	boom := errors.New("boom")
	var cancelled atomic.Int32

	err := strand.ForEach(context.Background(), []int{0, 1, 2, 3}, func(ctx context.Context, n int) error {
		if n == 0 {
			return boom
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), cancelled.Load())
}

func TestForEachWithLimit(t *testing.T) {
	var active, peak atomic.Int32
	items := make([]int, 20)

	err := strand.ForEach(context.Background(), items, func(ctx context.Context, _ int) error {
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
	}, strand.WithConcurrencyLimit(4))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestMapPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	out, err := strand.Map(context.Background(), items, func(ctx context.Context, n int) (int, error) {
		// Finish in reverse order to prove results land by index.
		time.Sleep(time.Duration(6-n) * time.Millisecond)
		return n * n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25}, out)
}

func TestMapError(t *testing.T) {
	boom := errors.New("boom")
	out, err := strand.Map(context.Background(), []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, out)
}
