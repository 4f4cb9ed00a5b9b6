package strand_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strandlib/strand"
)

func TestContinuationResumeDeliversValue(t *testing.T) {
	c := strand.NewContinuation[int]()

	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Resume(42)
	}()

	v, err := c.Suspend(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestContinuationResumeBeforeSuspend(t *testing.T) {
	c := strand.NewContinuation[string]()
	require.True(t, c.Resume("early"))

	v, err := c.Suspend(context.Background())
	require.NoError(t, err)
	require.Equal(t, "early", v)
}

func TestContinuationOneShot(t *testing.T) {
	c := strand.NewContinuation[int]()
	require.True(t, c.Resume(1))
	require.False(t, c.Resume(2))
	require.False(t, c.ResumeError(errors.New("late")))
	require.False(t, c.Cancel(errors.New("late")))

	v, err := c.Suspend(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestContinuationResumeError(t *testing.T) {
	c := strand.NewContinuation[int]()
	boom := errors.New("boom")
	require.True(t, c.ResumeError(boom))

	_, err := c.Suspend(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestContinuationCancelBeatsResume(t *testing.T) {
	c := strand.NewContinuation[int]()
	cause := errors.New("gone")
	require.True(t, c.Cancel(cause))
	require.False(t, c.Resume(7))

	_, err := c.Suspend(context.Background())
	require.ErrorIs(t, err, cause)
}

func TestContinuationCancelNilCause(t *testing.T) {
	c := strand.NewContinuation[int]()
	require.True(t, c.Cancel(nil))

	_, err := c.Suspend(context.Background())
	require.ErrorIs(t, err, strand.ErrCancelled)
}

func TestContinuationSuspendContextCancel(t *testing.T) {
	c := strand.NewContinuation[int]()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := c.Suspend(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestContinuationSuspendLosingCancelSeesDelivery(t *testing.T) {
	// A resume claimed before the context cancellation must still be
	// observed by the suspended party.
	c := strand.NewContinuation[int]()
	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, c.Resume(99))
	cancel()

	v, err := c.Suspend(ctx)
	require.NoError(t, err)
	require.Equal(t, 99, v)
}

func TestContinuationTwoPhaseResume(t *testing.T) {
	c := strand.NewContinuation[int]()
	tok, ok := c.TryResume(5)
	require.True(t, ok)

	// The delivery must not be visible before CompleteResume.
	select {
	case <-c.Done():
		t.Fatal("continuation decided before CompleteResume")
	default:
	}

	// Competing producers and cancellation lose once the cell is claimed.
	_, ok = c.TryResume(6)
	require.False(t, ok)
	require.False(t, c.Cancel(errors.New("race")))

	c.CompleteResume(tok)
	v, err := c.Suspend(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestContinuationCompleteResumeWithoutTryPanics(t *testing.T) {
	c := strand.NewContinuation[int]()
	require.Panics(t, func() {
		c.CompleteResume(strand.ResumeToken{})
	})
}

func TestContinuationConcurrentResumersExactlyOneWins(t *testing.T) {
	for range 100 {
		c := strand.NewContinuation[int]()
		var wg sync.WaitGroup
		wins := make(chan int, 3)
		for i := 1; i <= 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if c.Resume(i) {
					wins <- i
				}
			}()
		}
		wg.Wait()
		close(wins)

		var winners []int
		for w := range wins {
			winners = append(winners, w)
		}
		require.Len(t, winners, 1)

		v, err := c.Suspend(context.Background())
		require.NoError(t, err)
		require.Equal(t, winners[0], v)
	}
}
