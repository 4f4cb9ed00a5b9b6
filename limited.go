package strand

import (
	"sync"

	"go.uber.org/atomic"
)

// DefaultYieldThreshold is how many queued tasks a limited-dispatcher
// worker loop drains before handing itself back to the underlying
// dispatcher, so it does not starve the underlying dispatcher's other
// consumers. Empirically tuned; override with [WithYieldThreshold].
const DefaultYieldThreshold = 16

// LimitedDispatcher wraps another dispatcher with a hard parallelism limit:
// at most limit worker loops run on the underlying dispatcher at any time,
// regardless of how many tasks are queued. Queueing is unbounded and
// Dispatch never blocks.
//
// The admission race is resolved by double-checking on both sides: the exit
// path re-checks the queue under the queue lock before decrementing the
// in-flight count, and the enqueue path re-checks the in-flight count after
// insertion, so a task enqueued just as the last worker loop is exiting is
// never stranded.
type LimitedDispatcher struct {
	underlying Dispatcher
	limit      int32
	yieldEvery int

	inFlight atomic.Int32

	mu    sync.Mutex // short critical section around the queue only
	queue []func()
}

// LimitedOption configures a [LimitedDispatcher].
type LimitedOption func(*LimitedDispatcher)

// WithYieldThreshold overrides [DefaultYieldThreshold].
// Panics if n <= 0.
func WithYieldThreshold(n int) LimitedOption {
	if n <= 0 {
		panic("strand: WithYieldThreshold requires n > 0")
	}
	return func(l *LimitedDispatcher) { l.yieldEvery = n }
}

// NewLimitedDispatcher wraps underlying with a parallelism limit.
// Panics if underlying is nil or limit <= 0.
func NewLimitedDispatcher(underlying Dispatcher, limit int, opts ...LimitedOption) *LimitedDispatcher {
	if underlying == nil {
		panic("strand: NewLimitedDispatcher requires a non-nil dispatcher")
	}
	if limit <= 0 {
		panic("strand: NewLimitedDispatcher requires limit > 0")
	}
	l := &LimitedDispatcher{
		underlying: underlying,
		limit:      int32(limit),
		yieldEvery: DefaultYieldThreshold,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dispatch enqueues fn and, if the parallelism budget allows, submits a new
// worker loop to the underlying dispatcher. Never blocks.
func (l *LimitedDispatcher) Dispatch(fn func()) {
	if fn == nil {
		panic("strand: Dispatch requires a non-nil task")
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	// Re-check in-flight after insertion: if every worker loop exited
	// between our enqueue and here, this loop admits a new one.
	for {
		n := l.inFlight.Load()
		if n >= l.limit {
			return
		}
		if l.inFlight.CompareAndSwap(n, n+1) {
			l.underlying.Dispatch(l.workerLoop)
			return
		}
	}
}

// workerLoop drains the queue until it is empty or the fairness threshold
// is hit. Hitting the threshold re-submits the loop to the underlying
// dispatcher without releasing the in-flight slot.
func (l *LimitedDispatcher) workerLoop() {
	for served := 0; ; served++ {
		if served >= l.yieldEvery {
			l.underlying.Dispatch(l.workerLoop)
			return
		}

		l.mu.Lock()
		if len(l.queue) == 0 {
			// Exit path: the emptiness check and the decrement happen
			// under the same critical section an enqueuer must pass
			// through, so the enqueuer's post-insert re-check always
			// observes the decremented count.
			l.inFlight.Add(-1)
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		protect(fn)
	}
}

// QueueDepth returns the number of tasks waiting for a worker loop.
func (l *LimitedDispatcher) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// InFlight returns the number of worker loops currently admitted.
func (l *LimitedDispatcher) InFlight() int {
	return int(l.inFlight.Load())
}
