package strand

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	poolCreated int32 = iota
	poolStarted
	poolStopped
)

// PoolDispatcher is a [Dispatcher] backed by a fixed number of worker
// goroutines draining a shared queue. A panicking task is reported to the
// unhandled-failure hook and never terminates its worker.
type PoolDispatcher struct {
	status atomic.Int32

	tasks chan func()
	stop  chan struct{}
	wg    sync.WaitGroup

	workers int

	// Observability counters.
	dispatched atomic.Int64
	completed  atomic.Int64
	inFlight   atomic.Int64
}

// PoolStats provides a point-in-time snapshot of pool activity.
type PoolStats struct {
	Dispatched int64 // total tasks accepted
	Completed  int64 // tasks finished
	InFlight   int64 // tasks currently executing
	QueueDepth int   // tasks waiting in the queue
	Workers    int   // worker count (fixed at creation)
}

// PoolOption configures a [PoolDispatcher].
type PoolOption func(*poolConfig)

type poolConfig struct {
	queueSize int
}

// WithQueueSize sets the task queue buffer size. Default is workers * 2.
func WithQueueSize(size int) PoolOption {
	return func(c *poolConfig) {
		if size < 0 {
			panic("strand: WithQueueSize requires non-negative size")
		}
		c.queueSize = size
	}
}

// NewPoolDispatcher creates a dispatcher with n worker goroutines. The pool
// must be started with [PoolDispatcher.Start] before it executes anything.
// Panics if n <= 0.
func NewPoolDispatcher(n int, opts ...PoolOption) *PoolDispatcher {
	if n <= 0 {
		panic("strand: NewPoolDispatcher requires n > 0")
	}

	cfg := poolConfig{queueSize: n * 2}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &PoolDispatcher{
		tasks:   make(chan func(), cfg.queueSize),
		stop:    make(chan struct{}),
		workers: n,
	}
}

// Start launches the workers. Idempotent.
func (p *PoolDispatcher) Start() {
	if !p.status.CompareAndSwap(poolCreated, poolStarted) {
		return
	}
	p.wg.Add(p.workers)
	for range p.workers {
		go p.worker()
	}
	logger().Info("pool dispatcher started", zap.Int("workers", p.workers))
}

// Stop shuts the pool down and waits for in-flight tasks to finish. Tasks
// still queued are executed before the workers exit. Idempotent.
func (p *PoolDispatcher) Stop() {
	if !p.status.CompareAndSwap(poolStarted, poolStopped) {
		return
	}
	close(p.stop)
	p.wg.Wait()
	logger().Info("pool dispatcher stopped",
		zap.Int64("completed", p.completed.Load()))
}

// Dispatch enqueues fn. It blocks while the queue is full. Dispatching to a
// stopped (or never started) pool falls back to a fresh goroutine so the
// task is never stranded.
func (p *PoolDispatcher) Dispatch(fn func()) {
	if fn == nil {
		panic("strand: Dispatch requires a non-nil task")
	}
	if p.status.Load() != poolStarted {
		go protect(fn)
		return
	}
	select {
	case p.tasks <- fn:
		p.dispatched.Add(1)
	case <-p.stop:
		go protect(fn)
	}
}

func (p *PoolDispatcher) worker() {
	defer p.wg.Done()
	for {
		select {
		case fn := <-p.tasks:
			p.run(fn)
		case <-p.stop:
			// Drain whatever was accepted before the stop.
			for {
				select {
				case fn := <-p.tasks:
					p.run(fn)
				default:
					return
				}
			}
		}
	}
}

func (p *PoolDispatcher) run(fn func()) {
	p.inFlight.Add(1)
	defer func() {
		p.inFlight.Add(-1)
		p.completed.Add(1)
	}()
	protect(fn)
}

// Stats returns a point-in-time snapshot of pool activity.
// Safe to call concurrently.
func (p *PoolDispatcher) Stats() PoolStats {
	return PoolStats{
		Dispatched: p.dispatched.Load(),
		Completed:  p.completed.Load(),
		InFlight:   p.inFlight.Load(),
		QueueDepth: len(p.tasks),
		Workers:    p.workers,
	}
}
