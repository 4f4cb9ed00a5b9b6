package strand

import (
	"context"
	"sync"
)

// EventLoop is the inline fallback dispatcher: tasks dispatched to it run
// on whichever goroutine is inside [EventLoop.Run], one at a time, in
// dispatch order. Dispatch never blocks; the queue is unbounded.
//
// Use it to confine a job tree to the calling goroutine, in the manner of
// a main-thread executor.
type EventLoop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewEventLoop creates an idle event loop.
func NewEventLoop() *EventLoop {
	return &EventLoop{wake: make(chan struct{}, 1)}
}

// Dispatch appends fn to the loop's queue and wakes the runner.
func (e *EventLoop) Dispatch(fn func()) {
	if fn == nil {
		panic("strand: Dispatch requires a non-nil task")
	}
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run processes dispatched tasks on the calling goroutine until ctx is
// cancelled, then returns ctx's cause. Tasks queued at the moment of
// cancellation are still run; tasks dispatched afterwards wait for the
// next Run.
func (e *EventLoop) Run(ctx context.Context) error {
	for {
		if e.drain() {
			continue
		}
		select {
		case <-ctx.Done():
			e.drain()
			return context.Cause(ctx)
		case <-e.wake:
		}
	}
}

// drain runs every currently queued task and reports whether it ran any.
func (e *EventLoop) drain() bool {
	ran := false
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return ran
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		protect(fn)
		ran = true
	}
}
