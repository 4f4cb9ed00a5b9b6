package strand

import "context"

// A Dispatcher decides where a unit of work runs. Dispatch enqueues fn for
// asynchronous execution and returns without waiting for it. Dispatchers
// never lose tasks and never let a task's panic kill their machinery: a
// panicking task is routed to the unhandled-failure hook.
type Dispatcher interface {
	Dispatch(fn func())
}

// Go is the default dispatcher: every task runs on its own goroutine, with
// the runtime's scheduler as the worker pool.
var Go Dispatcher = goDispatcher{}

type goDispatcher struct{}

func (goDispatcher) Dispatch(fn func()) {
	if fn == nil {
		panic("strand: Dispatch requires a non-nil task")
	}
	go protect(fn)
}

// Inline runs the task immediately on the calling goroutine, before
// Dispatch returns. Useful for tests and lightweight combinators; note it
// trades away the asynchrony Dispatch normally guarantees.
var Inline Dispatcher = inlineDispatcher{}

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(fn func()) {
	if fn == nil {
		panic("strand: Dispatch requires a non-nil task")
	}
	protect(fn)
}

// protect runs fn, routing a panic to the unhandled-failure hook so the
// caller's machinery (worker loop, event loop) survives.
func protect(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			reportUnhandled(newPanicError(r))
		}
	}()
	fn()
}

// Yield reschedules the caller through d, parking until every task already
// queued on d ahead of it has run. It returns early with ctx's cause if the
// caller is cancelled while parked.
func Yield(ctx context.Context, d Dispatcher) error {
	if d == nil {
		panic("strand: Yield requires a non-nil dispatcher")
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	c := NewContinuation[struct{}]()
	d.Dispatch(func() { c.resumeYield() })
	_, err := c.Suspend(ctx)
	return err
}
