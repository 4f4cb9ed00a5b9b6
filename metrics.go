package strand

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
)

// Metrics is a point-in-time snapshot of a scope's job activity, delivered
// through [WithMetrics].
type Metrics struct {
	// Launched counts every job launched into the scope so far.
	Launched int64
	// Active counts launched jobs that have not yet reached a terminal
	// state.
	Active int64
	// Completed counts jobs that reached a terminal state, whatever the
	// outcome.
	Completed int64
	// Failed counts completed jobs whose cause was a failure rather than
	// a cancellation.
	Failed int64
}

type scopeMetrics struct {
	launched  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func (m *scopeMetrics) snapshot() Metrics {
	// completed is read first so a job finishing mid-snapshot can only
	// make Active read high, never negative.
	completed := m.completed.Load()
	launched := m.launched.Load()
	return Metrics{
		Launched:  launched,
		Active:    launched - completed,
		Completed: completed,
		Failed:    m.failed.Load(),
	}
}

// jobDone runs as a completion handler, after the job's state is terminal
// and its mutex released.
func (m *scopeMetrics) jobDone(j *Job) {
	j.mu.Lock()
	failed := j.failure != nil
	j.mu.Unlock()
	if failed {
		m.failed.Add(1)
	}
	m.completed.Add(1)
}

// WithMetrics registers a callback that receives periodic [Metrics]
// snapshots for the scope, plus one final snapshot when the scope's root
// job completes. The callback runs on its own goroutine; interval must be
// positive and fn non-nil.
func WithMetrics(interval time.Duration, fn func(Metrics)) ScopeOption {
	if interval <= 0 {
		panic("strand: WithMetrics requires interval > 0")
	}
	if fn == nil {
		panic("strand: WithMetrics requires a non-nil callback")
	}
	return func(c *scopeConfig) {
		c.metricsInterval = interval
		c.onMetrics = fn
	}
}

// reportMetrics drives the periodic snapshots until the scope's root job
// is done, then emits the final snapshot.
func reportMetrics(s *Scope, clk clock.Clock, interval time.Duration, fn func(Metrics)) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn(s.met.snapshot())
		case <-s.job.Done():
			fn(s.met.snapshot())
			return
		}
	}
}
