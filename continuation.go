package strand

import (
	"context"
	"sync/atomic"
)

// Decision states of a Continuation. The cell moves strictly forward:
//
//	undecided ─┬─> suspended ─┬─> resuming ──> resumed
//	           │              ├─> cancelled
//	           │              └─> yielded
//	           ├─> resuming ──> resumed
//	           └─> cancelled
//
// yielded is a distinct terminal used by the fairness requeue path ([Yield]);
// it behaves like a successful resume with the zero value but is kept apart
// so a requeued wakeup is never mistaken for a value delivery.
const (
	csUndecided int32 = iota
	csSuspended
	csResuming
	csResumed
	csCancelled
	csYielded
)

// A Continuation is a one-shot resumption point: the parked half of a
// suspending operation. Exactly one of resume, failure or cancellation takes
// effect; every later attempt is refused by the same compare-and-swap cell,
// which is how races between competing producers, or between a producer and
// a cancellation, are decided.
//
// Producers that must coordinate further work between claiming the
// continuation and making the delivery visible (for example a channel
// updating its ring indices) use the two-phase [Continuation.TryResume] /
// [Continuation.CompleteResume] protocol. Everyone else can use
// [Continuation.Resume] or [Continuation.ResumeError].
type Continuation[T any] struct {
	state atomic.Int32
	done  chan struct{}
	value T
	err   error
}

// NewContinuation creates an undecided continuation.
func NewContinuation[T any]() *Continuation[T] {
	return &Continuation[T]{done: make(chan struct{})}
}

// ResumeToken witnesses a won [Continuation.TryResume]. It must be handed
// back to [Continuation.CompleteResume] on the same continuation; the zero
// token is invalid.
type ResumeToken struct {
	valid bool
}

// TryResume attempts the one-shot transition to resuming and, on success,
// stores v as the delivery. The delivery is not visible to the suspended
// party until [Continuation.CompleteResume]. Returns ok=false if the
// continuation was already claimed or cancelled; the losing write has no
// effect.
func (c *Continuation[T]) TryResume(v T) (ResumeToken, bool) {
	for {
		s := c.state.Load()
		if s != csUndecided && s != csSuspended {
			return ResumeToken{}, false
		}
		if c.state.CompareAndSwap(s, csResuming) {
			c.value = v
			return ResumeToken{valid: true}, true
		}
	}
}

// TryResumeError is [Continuation.TryResume] for a failure delivery.
func (c *Continuation[T]) TryResumeError(err error) (ResumeToken, bool) {
	for {
		s := c.state.Load()
		if s != csUndecided && s != csSuspended {
			return ResumeToken{}, false
		}
		if c.state.CompareAndSwap(s, csResuming) {
			c.err = err
			return ResumeToken{valid: true}, true
		}
	}
}

// CompleteResume finalizes a delivery claimed by a successful TryResume,
// waking the suspended party. Calling it with a token not obtained from this
// continuation's TryResume is a programming error.
func (c *Continuation[T]) CompleteResume(t ResumeToken) {
	if !t.valid || !c.state.CompareAndSwap(csResuming, csResumed) {
		panic("strand: CompleteResume without a matching TryResume")
	}
	close(c.done)
}

// Resume performs TryResume and CompleteResume in one step. It reports
// whether the delivery took effect; false means the continuation was already
// resumed or cancelled, and the value is discarded.
func (c *Continuation[T]) Resume(v T) bool {
	t, ok := c.TryResume(v)
	if !ok {
		return false
	}
	c.CompleteResume(t)
	return true
}

// ResumeError is [Continuation.Resume] for a failure.
func (c *Continuation[T]) ResumeError(err error) bool {
	t, ok := c.TryResumeError(err)
	if !ok {
		return false
	}
	c.CompleteResume(t)
	return true
}

// Cancel attempts the one-shot transition to cancelled. It loses to any
// resume already in flight; the suspended party then observes the delivery,
// not the cancellation. A nil cause is normalized to [ErrCancelled].
func (c *Continuation[T]) Cancel(cause error) bool {
	if cause == nil {
		cause = ErrCancelled
	}
	for {
		s := c.state.Load()
		if s != csUndecided && s != csSuspended {
			return false
		}
		if c.state.CompareAndSwap(s, csCancelled) {
			c.err = cause
			close(c.done)
			return true
		}
	}
}

// resumeYield wakes the continuation through the distinct yielded state.
// Used by the dispatcher requeue path only.
func (c *Continuation[T]) resumeYield() bool {
	for {
		s := c.state.Load()
		if s != csUndecided && s != csSuspended {
			return false
		}
		if c.state.CompareAndSwap(s, csYielded) {
			close(c.done)
			return true
		}
	}
}

// cancelled reports whether the continuation ended in cancellation. Channel
// and mutex wait queues use it as the logical-removal mark: a cancelled
// waiter stays linked until a scan skips and unlinks it.
func (c *Continuation[T]) cancelled() bool {
	return c.state.Load() == csCancelled
}

// Done returns a channel closed once the continuation is decided. Callers
// that need to interleave their own cancellation protocol with the wait,
// such as a channel serializing waiter cancellation under its queue lock,
// park on Done directly instead of using [Continuation.Suspend].
func (c *Continuation[T]) Done() <-chan struct{} {
	return c.done
}

// Result returns the decided delivery. It is valid only after Done is
// closed.
func (c *Continuation[T]) Result() (T, error) {
	switch c.state.Load() {
	case csResumed, csYielded:
		return c.value, c.err
	default:
		var zero T
		return zero, c.err
	}
}

// Suspend parks the caller until the continuation is decided and returns
// the delivery. If ctx is cancelled first, Suspend races the cancellation
// against any in-flight resume through the decision cell: winning returns
// ctx's error, losing waits for and returns the delivery.
func (c *Continuation[T]) Suspend(ctx context.Context) (T, error) {
	c.state.CompareAndSwap(csUndecided, csSuspended)
	select {
	case <-c.done:
	case <-ctx.Done():
		if c.Cancel(context.Cause(ctx)) {
			var zero T
			return zero, c.err
		}
		// A resume won the cell; the delivery is already in flight and
		// completes without suspension.
		<-c.done
	}
	switch c.state.Load() {
	case csResumed, csYielded:
		return c.value, c.err
	default: // csCancelled
		var zero T
		return zero, c.err
	}
}
