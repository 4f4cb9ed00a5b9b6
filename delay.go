package strand

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// A TimerSource schedules continuation resumptions on a clock. The clock is
// injectable so tests can drive timers with a mock; everything else uses
// the package-level [Delay] and [WithTimeout], which run on the wall clock.
type TimerSource struct {
	clk clock.Clock
}

// NewTimerSource creates a timer source on the given clock. A nil clock
// means the wall clock.
func NewTimerSource(clk clock.Clock) *TimerSource {
	if clk == nil {
		clk = clock.New()
	}
	return &TimerSource{clk: clk}
}

var defaultTimers = NewTimerSource(nil)

// ScheduleResumeAfterDelay arranges for c to be resumed once d has elapsed.
// The returned stop func cancels the timer; it reports whether the timer
// was stopped before firing. The resumption loses cleanly to any other
// decision already taken on c.
func (t *TimerSource) ScheduleResumeAfterDelay(d time.Duration, c *Continuation[struct{}]) (stop func() bool) {
	timer := t.clk.AfterFunc(d, func() {
		c.Resume(struct{}{})
	})
	return timer.Stop
}

// Delay suspends the caller for d, or until ctx is cancelled, whichever
// comes first. Returns nil after a full delay and ctx's cause otherwise.
func (t *TimerSource) Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return context.Cause(ctx)
	}
	c := NewContinuation[struct{}]()
	stop := t.ScheduleResumeAfterDelay(d, c)
	defer stop()
	_, err := c.Suspend(ctx)
	return err
}

// Delay suspends the caller for d on the wall clock. See
// [TimerSource.Delay].
func Delay(ctx context.Context, d time.Duration) error {
	return defaultTimers.Delay(ctx, d)
}

// WithTimeout runs fn in its own job tree and cancels the whole tree with
// [ErrTimeout] if it outlives d. It returns fn's error, or ErrTimeout if
// the deadline won, or the scope's aggregated failure if a child failed
// first.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context, s *Scope) error) error {
	return defaultTimers.withTimeout(ctx, d, fn)
}

func (t *TimerSource) withTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context, s *Scope) error) error {
	if fn == nil {
		panic("strand: WithTimeout requires a non-nil function")
	}
	s := NewScope(ctx)
	timer := t.clk.AfterFunc(d, func() {
		s.Cancel(ErrTimeout)
	})
	defer timer.Stop()

	s.Launch("timeout-body", func(ctx context.Context) error {
		return fn(ctx, s)
	})
	return s.Wait(ctx)
}
