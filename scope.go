// Scope ties a tree of jobs to a lexical region of the program: every job
// launched in a scope is a child of the scope's root job, shares its
// context, and is guaranteed to be finished (or cancelled) by the time
// [Scope.Wait] returns. Cancellation flows top-down through the tree;
// failures flow bottom-up and, unless supervised, take the scope down with
// them.
//
// Example usage:
//
//	s := strand.NewScope(ctx)
//	s.Launch("fetch", func(ctx context.Context) error {
//	    // work; observe ctx for cancellation
//	    return nil
//	})
//	err := s.Wait(ctx)
package strand

import (
	"context"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/semaphore"
)

// Scope owns a root [Job] and launches children into it. Create one with
// [NewScope] and finalize with [Scope.Wait], or use [Run] which does both.
type Scope struct {
	job *Job
	cfg scopeConfig
	sem *semaphore.Weighted
	met *scopeMetrics
}

// NewScope creates a scope whose root job lives under ctx: cancelling ctx
// cancels the scope with ctx's cause. The caller must finish the scope with
// [Scope.Wait].
func NewScope(ctx context.Context, opts ...ScopeOption) *Scope {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := defaultScopeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	root := newJob(ctx, nil, "scope", cfg.dispatcher)
	root.state.init(stateActive)
	root.observed = true // Wait collects the outcome

	s := &Scope{job: root, cfg: cfg}
	if cfg.limit > 0 {
		s.sem = semaphore.NewWeighted(cfg.limit)
	}
	if cfg.onMetrics != nil {
		s.met = &scopeMetrics{}
		go reportMetrics(s, clock.New(), cfg.metricsInterval, cfg.onMetrics)
	}

	// Propagate external cancellation into the job tree; detach the watch
	// once the root is done.
	stop := context.AfterFunc(ctx, func() {
		root.Cancel(context.Cause(ctx))
	})
	root.InvokeOnCompletion(func(error) { stop() })

	return s
}

// Run creates a [Scope], invokes fn to populate it, then waits for every
// launched job to finish and returns the scope's aggregated outcome. A
// panic in fn cancels the scope and re-panics after the tree has been torn
// down.
//
// Run is the primary entry point for structured concurrency; use [NewScope]
// when the scope has to cross function boundaries.
func Run(ctx context.Context, fn func(s *Scope), opts ...ScopeOption) (err error) {
	s := NewScope(ctx, opts...)

	defer func() {
		if r := recover(); r != nil {
			s.Cancel(newPanicError(r))
			_ = s.job.Join(context.Background())
			panic(r)
		}
	}()

	fn(s)
	return s.Wait(ctx)
}

// Launch starts fn as a named child job of the scope and returns its
// handle. fn runs on the scope's dispatcher (or the one given via [Via])
// and observes cancellation through its context. Panics if fn is nil.
func (s *Scope) Launch(name string, fn func(ctx context.Context) error, opts ...LaunchOption) *Job {
	if fn == nil {
		panic("strand: Launch requires a non-nil task function")
	}
	cfg := launchConfig{dispatcher: s.cfg.dispatcher, supervised: s.cfg.supervisor}
	for _, opt := range opts {
		opt(&cfg)
	}

	j := newJob(nil, s.job, name, cfg.dispatcher)
	j.supervised = cfg.supervised
	if s.met != nil {
		s.met.launched.Add(1)
		j.InvokeOnCompletion(func(error) { s.met.jobDone(j) })
	}

	body := fn
	if s.sem != nil {
		inner := fn
		body = func(ctx context.Context) error {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				// Cancelled while waiting for a slot; the real cause is
				// already recorded on the tree.
				return err
			}
			defer s.sem.Release(1)
			return inner(ctx)
		}
	}
	j.body = func() { j.runBody(body) }

	if !cfg.lazy {
		j.Start()
	}
	return j
}

// Job returns the scope's root job.
func (s *Scope) Job() *Job { return s.job }

// Context returns the scope's context, cancelled when the scope is
// cancelled or finished.
func (s *Scope) Context() context.Context { return s.job.ctx }

// Cancel cancels the scope's whole job tree with the given cause.
// Idempotent.
func (s *Scope) Cancel(cause error) {
	s.job.Cancel(cause)
}

// Wait closes the scope to its own completion, waits for every job in the
// tree to reach a terminal state, and returns the aggregated outcome: nil
// if everything completed, the (possibly merged) failure cause if a job
// failed, or a [*CancelledError] if the scope was cancelled outright.
// ctx only bounds the waiting; the tree keeps running if ctx expires.
func (s *Scope) Wait(ctx context.Context) error {
	s.job.Complete()
	if err := s.job.Join(ctx); err != nil {
		return err
	}
	cause := s.job.Cause()
	if cause == nil {
		return nil
	}
	if ce, ok := cause.(*CancelledError); ok && ce.Cause != nil {
		return ce.Cause
	}
	return cause
}
