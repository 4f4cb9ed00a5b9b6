package strand

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// CompletionHandler runs exactly once when a [Job] reaches a terminal state.
// cause is nil for normal completion and the job's [*CancelledError]
// otherwise. Handlers run synchronously on the goroutine that performed the
// terminal transition and must not panic; a panic is routed to the
// unhandled-failure hook, never rethrown to the transition caller.
type CompletionHandler func(cause error)

type completionHandler struct {
	fn      CompletionHandler
	removed atomic.Bool
}

// A Job is a cancellable, hierarchical handle to a unit of asynchronous
// work. Jobs form a tree: cancelling a job cancels every child, a child's
// failure cancels the parent (unless the child is supervised), and a job
// only completes once its body and all of its children have.
//
// Lifecycle: New (lazy only) → Active → Completing → Completed, or any
// non-terminal state → Cancelling → Cancelled. A cancelled job always
// carries a non-nil [*CancelledError]; a completed job's result is
// immutable. All transitions go through the CAS state cell; no state is
// ever revisited.
//
// Create jobs through [Scope.Launch], [Async], or — for a manually
// completed job — [NewJob].
type Job struct {
	name  string
	state stateCell
	done  chan struct{}

	ctx       context.Context
	cancelCtx context.CancelCauseFunc

	parent     *Job
	supervised bool // failure does not cancel the parent
	observed   bool // a waiter is known to collect the failure

	dispatcher Dispatcher
	body       func() // dispatched by Start; nil for completable jobs

	// causeCell mirrors the cancellation cause for lock-free reads; it is
	// provisional while Cancelling and final once terminal.
	causeCell atomic.Error

	mu       sync.Mutex // guards everything below plus state transitions
	children []*Job
	handlers []*completionHandler
	bodyDone bool
	failure  error          // original failure(s), nil for pure cancellation
	extCause *CancelledError // cause passed to an external Cancel
}

// NewJob creates a manually completed job as a child of parent (nil for a
// root). It becomes terminal through [Job.Complete], [Job.Fail] or
// [Job.Cancel], after all of its children are done.
func NewJob(parent *Job) *Job {
	j := newJob(nil, parent, "", nil)
	j.state.init(stateActive)
	return j
}

// newJob wires a job into the tree. parentCtx overrides the context the
// job's own context derives from; nil means the parent job's context (or
// Background for a root).
func newJob(parentCtx context.Context, parent *Job, name string, dispatcher Dispatcher) *Job {
	if parentCtx == nil {
		if parent != nil {
			parentCtx = parent.ctx
		} else {
			parentCtx = context.Background()
		}
	}
	ctx, cancel := context.WithCancelCause(parentCtx)
	j := &Job{
		name:       name,
		done:       make(chan struct{}),
		ctx:        ctx,
		cancelCtx:  cancel,
		parent:     parent,
		dispatcher: dispatcher,
	}
	j.state.init(stateNew)
	if parent != nil {
		parent.attach(j)
	}
	return j
}

// Name returns the name given at launch, or "".
func (j *Job) Name() string { return j.name }

// Context returns the job's context. It is derived from the parent job's
// context and cancelled, with the job's cause, when the job is cancelled.
// The body observes cancellation through it.
func (j *Job) Context() context.Context { return j.ctx }

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// IsActive reports whether the job is running or runnable (Active or
// Completing). A cancelling job is no longer active.
func (j *Job) IsActive() bool {
	st := j.state.load()
	return st == stateActive || st == stateCompleting
}

// IsCancelled reports whether the job is cancelling or cancelled.
func (j *Job) IsCancelled() bool {
	st := j.state.load()
	return st == stateCancelling || st == stateCancelled
}

// IsCompleted reports whether the job reached a terminal state, successful
// or not.
func (j *Job) IsCompleted() bool { return j.state.load().terminal() }

// Cause returns the job's cancellation cause: nil while running and after
// normal completion, a [*CancelledError] once cancelling. The cause is
// provisional until the job is terminal; late child failures may still be
// merged in.
func (j *Job) Cause() error { return j.causeCell.Load() }

// Start moves a lazily launched job from New to Active and dispatches its
// body. It reports whether this call performed the transition; starting an
// already active or terminal job is a no-op.
func (j *Job) Start() bool {
	if !j.state.cas(stateNew, stateActive) {
		return false
	}
	if j.body != nil {
		d := j.dispatcher
		if d == nil {
			d = Go
		}
		d.Dispatch(j.body)
	}
	return true
}

// Join suspends the caller until the job is terminal. It never reports the
// job's own failure or cancellation: callers that need the outcome must
// inspect [Job.Cause] (or use [Deferred.Await], which does rethrow). The
// only error Join returns is the caller's own context cancellation.
func (j *Job) Join(ctx context.Context) error {
	j.Start()
	select {
	case <-j.done:
		return nil
	default:
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Cancel requests cancellation with the given cause and synchronously
// cancels every child. It is idempotent: it reports whether this invocation
// performed the transition, and cancelling an already cancelling or
// terminal job is a safe no-op. A nil cause is normalized to a plain
// cancellation.
//
// Cancellation is cooperative: the job's body observes it at its next
// suspension point via [Job.Context].
func (j *Job) Cancel(cause error) bool {
	return j.cancelTransition(cancelledCause(cause), false)
}

// Complete marks a [NewJob]-created job's own work as done. The job becomes
// Completed once all children finish (Completing in the interim). It
// reports whether this call initiated completion.
func (j *Job) Complete() bool {
	if j.body != nil {
		panic("strand: Complete on a launched job")
	}
	j.mu.Lock()
	if j.bodyDone {
		j.mu.Unlock()
		return false
	}
	j.bodyDone = true
	j.mu.Unlock()
	j.tryFinalize()
	return true
}

// Fail completes a [NewJob]-created job exceptionally. The failure cancels
// the job tree below it and propagates to the parent like any child
// failure.
func (j *Job) Fail(err error) bool {
	if j.body != nil {
		panic("strand: Fail on a launched job")
	}
	if err == nil {
		panic("strand: Fail requires a non-nil error")
	}
	caused := j.fail(err)
	j.mu.Lock()
	j.bodyDone = true
	j.mu.Unlock()
	j.tryFinalize()
	return caused
}

// InvokeOnCompletion registers a handler to run exactly once when the job
// becomes terminal. Handlers fire synchronously in registration order. If
// the job is already terminal the handler fires immediately, before
// InvokeOnCompletion returns. The returned func disposes the registration;
// disposing after the handler fired is a no-op.
func (j *Job) InvokeOnCompletion(h CompletionHandler) (dispose func()) {
	if h == nil {
		panic("strand: InvokeOnCompletion requires a non-nil handler")
	}
	j.mu.Lock()
	if j.state.load().terminal() {
		cause := j.causeCell.Load()
		j.mu.Unlock()
		runHandler(h, cause)
		return func() {}
	}
	node := &completionHandler{fn: h}
	j.handlers = append(j.handlers, node)
	j.mu.Unlock()
	return func() { node.removed.Store(true) }
}

// attach links a freshly created child. A parent that is already going down
// takes the child with it immediately.
func (j *Job) attach(child *Job) {
	j.mu.Lock()
	st := j.state.load()
	if st == stateCancelling || st.terminal() {
		cause := j.causeCell.Load()
		j.mu.Unlock()
		child.Cancel(cause)
		return
	}
	j.children = append(j.children, child)
	j.mu.Unlock()
}

// fail records a failure originating at this job (body error, panic, or a
// child's propagated failure) and turns it into a self-cancellation.
// Multiple failures racing into the same job are merged.
func (j *Job) fail(err error) bool {
	j.mu.Lock()
	j.failure = multierr.Append(j.failure, err)
	f := j.failure
	j.mu.Unlock()
	return j.cancelTransition(&CancelledError{Cause: f}, true)
}

// cancelTransition performs non-terminal → Cancelling, then pushes the
// cancellation down the tree. The state CAS is serialized with attach and
// finalize under mu; children are cancelled outside it.
func (j *Job) cancelTransition(ce *CancelledError, isFailure bool) bool {
	j.mu.Lock()
	st := j.state.load()
	if st == stateCancelling || st.terminal() {
		if isFailure && !st.terminal() {
			// Still cancelling: keep the merged failure visible. A terminal
			// cause is immutable; late failures were already merged under mu
			// before the finalize that could observe them.
			j.causeCell.Store(ce)
		}
		j.mu.Unlock()
		if isFailure {
			j.tryFinalize()
		}
		return false
	}
	if !j.state.cas(st, stateCancelling) {
		// Transitions only happen under mu; a failed CAS here means a bug.
		j.mu.Unlock()
		panic("strand: concurrent state transition outside mu")
	}
	if !isFailure {
		j.extCause = ce
	}
	j.causeCell.Store(ce)
	if st == stateNew || j.body == nil {
		// Lazy bodies never run; completable jobs have no body to wait
		// for, their cancellation is their completion.
		j.bodyDone = true
	}
	kids := slices.Clone(j.children)
	j.mu.Unlock()

	j.cancelCtx(ce)
	for _, c := range kids {
		c.Cancel(ce)
	}
	j.tryFinalize()
	return true
}

// runBody wraps a launched body: panic capture, failure recording and
// completion accounting. It runs on the job's dispatcher.
func (j *Job) runBody(fn func(ctx context.Context) error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = newPanicError(r)
			}
		}()
		err = fn(j.ctx)
	}()
	if err != nil && !IsCancellation(err) && !errors.Is(err, context.Canceled) {
		j.fail(err)
	}
	j.mu.Lock()
	j.bodyDone = true
	j.mu.Unlock()
	j.tryFinalize()
}

// childTerminated is the bottom-up half of propagation: the child has
// reached a terminal state and detaches itself. A failed, unsupervised
// child cancels this job; at most one propagation happens per child
// because each child terminates exactly once.
func (j *Job) childTerminated(child *Job) {
	// The child is terminal, so its failure record is immutable here.
	f := child.failureCause()

	var propagated *CancelledError
	j.mu.Lock()
	for i, c := range j.children {
		if c == child {
			j.children = slices.Delete(j.children, i, i+1)
			break
		}
	}
	if f != nil && !child.supervised {
		// Merged in the same critical section as the detach: any finalize
		// that observes the emptied child list must also observe this
		// failure, so the parent can never complete past it.
		j.failure = multierr.Append(j.failure, &JobError{Name: child.name, Err: f})
		propagated = &CancelledError{Cause: j.failure}
	}
	j.mu.Unlock()

	if propagated != nil {
		j.cancelTransition(propagated, true)
	}
	j.tryFinalize()
}

func (j *Job) failureCause() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failure
}

// tryFinalize attempts the terminal transition: body done, no live
// children. Handlers and parent notification run outside mu.
func (j *Job) tryFinalize() {
	j.mu.Lock()
	st := j.state.load()
	if st.terminal() {
		j.mu.Unlock()
		return
	}
	if !j.bodyDone {
		j.mu.Unlock()
		return
	}
	if len(j.children) > 0 {
		if st == stateActive {
			j.state.cas(stateActive, stateCompleting)
		}
		j.mu.Unlock()
		return
	}

	var cause *CancelledError
	switch {
	case st == stateCancelling, j.failure != nil:
		if j.failure != nil {
			cause = &CancelledError{Cause: j.failure}
		} else if j.extCause != nil {
			cause = j.extCause
		} else {
			cause = &CancelledError{}
		}
		if !j.state.cas(st, stateCancelled) {
			j.mu.Unlock()
			panic("strand: concurrent state transition outside mu")
		}
		j.causeCell.Store(cause)
	default:
		if !j.state.cas(st, stateCompleted) {
			j.mu.Unlock()
			panic("strand: concurrent state transition outside mu")
		}
	}
	hs := j.handlers
	j.handlers = nil
	failure := j.failure
	j.mu.Unlock()

	// Release the context subtree either way. The typed-nil check matters:
	// a nil *CancelledError must not become a non-nil error cause.
	if cause != nil {
		j.cancelCtx(cause)
	} else {
		j.cancelCtx(nil)
	}
	close(j.done)

	if j.parent != nil {
		j.parent.childTerminated(j)
	} else if failure != nil && !j.observed {
		reportUnhandled(failure)
	}

	var causeErr error
	if cause != nil {
		causeErr = cause
	}
	for _, node := range hs {
		if node.removed.Load() {
			continue
		}
		runHandler(node.fn, causeErr)
	}
}

func runHandler(h CompletionHandler, cause error) {
	defer func() {
		if r := recover(); r != nil {
			reportUnhandled(newPanicError(r))
		}
	}()
	h(cause)
}
