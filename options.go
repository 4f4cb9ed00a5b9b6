package strand

import "time"

// ScopeOption configures a [Scope].
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	dispatcher      Dispatcher
	limit           int64
	supervisor      bool
	metricsInterval time.Duration
	onMetrics       func(Metrics)
}

func defaultScopeConfig() scopeConfig {
	return scopeConfig{dispatcher: Go}
}

// WithDispatcher sets the dispatcher jobs launched in the scope run on.
// Default is [Go]. Panics if d is nil.
func WithDispatcher(d Dispatcher) ScopeOption {
	if d == nil {
		panic("strand: WithDispatcher requires a non-nil dispatcher")
	}
	return func(c *scopeConfig) {
		c.dispatcher = d
	}
}

// WithConcurrencyLimit caps how many of the scope's job bodies execute
// concurrently. Bodies beyond the limit wait for a slot, observing
// cancellation while they do. Zero (the default) means unlimited.
// Panics if n is negative.
func WithConcurrencyLimit(n int) ScopeOption {
	if n < 0 {
		panic("strand: WithConcurrencyLimit requires non-negative n")
	}
	return func(c *scopeConfig) {
		c.limit = int64(n)
	}
}

// WithSupervisor makes every job launched in the scope supervised by
// default: a child's failure is confined to that child instead of
// cancelling the scope and its siblings. Individual launches can still
// opt out with [Supervised](false).
func WithSupervisor() ScopeOption {
	return func(c *scopeConfig) {
		c.supervisor = true
	}
}

// LaunchOption configures a single [Scope.Launch] or [Async].
type LaunchOption func(*launchConfig)

type launchConfig struct {
	lazy       bool
	supervised bool
	dispatcher Dispatcher
}

// Lazy defers starting the job until [Job.Start] or [Job.Join] is called.
func Lazy() LaunchOption {
	return func(c *launchConfig) {
		c.lazy = true
	}
}

// Supervised controls whether the job's failure propagates to its parent.
// A supervised job's failure cancels only its own subtree.
func Supervised(on bool) LaunchOption {
	return func(c *launchConfig) {
		c.supervised = on
	}
}

// Via runs this job on d instead of the scope's dispatcher.
// Panics if d is nil.
func Via(d Dispatcher) LaunchOption {
	if d == nil {
		panic("strand: Via requires a non-nil dispatcher")
	}
	return func(c *launchConfig) {
		c.dispatcher = d
	}
}
