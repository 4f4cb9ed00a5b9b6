package strand

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
)

// Select waits on several suspending sources at once and commits to exactly
// one. Clauses are added through [Select.OnJoin], [Select.OnLock],
// [OnAwait] and the channel package's OnSend/OnReceive, then resolved by a
// single [Select.Wait].
//
// Resolution is atomic: every source races for the same one-shot
// [SelectToken], so even sources becoming ready simultaneously commit
// exactly one clause. By default ties on the non-suspending fast path go to
// the earliest-registered ready clause; [Unbiased] randomizes the scan
// start instead, so no clause is systematically starved.
type Select struct {
	clauses  []SelectClause
	unbiased bool
}

// SelectOption configures a [Select].
type SelectOption func(*Select)

// Unbiased makes the fast-path scan start at a random clause instead of
// the first one.
func Unbiased() SelectOption {
	return func(s *Select) { s.unbiased = true }
}

// NewSelect creates an empty select expression.
func NewSelect(opts ...SelectOption) *Select {
	s := &Select{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// A SelectClause adapts one suspending source to a [Select]. Implemented by
// the built-in sources; external implementations must follow the same
// protocol: Try performs the operation only if it can complete without
// suspending, and a registered source must win the token before delivering.
type SelectClause interface {
	// Try attempts the non-suspending fast path. ok means the operation
	// was performed and handler runs the clause body. A non-nil err means
	// the source has already failed and the whole select resolves with it.
	Try() (handler func(), ok bool, err error)

	// Register parks the clause on its source. The source calls
	// tok.TrySelect before delivering and tok.Complete after; a source
	// that is already failed calls tok.Fail instead (or returns err).
	// The returned cancel unregisters a losing clause; it may be nil.
	Register(tok *SelectToken) (cancel func(), err error)
}

// Add appends a custom clause. The built-in On* helpers call this.
func (s *Select) Add(c SelectClause) {
	if c == nil {
		panic("strand: Add requires a non-nil clause")
	}
	s.clauses = append(s.clauses, c)
}

// Token states.
const (
	selUndecided int32 = iota
	selSelected
	selFailed
	selCancelled
)

// SelectToken is the idempotent decision cell shared by every clause of one
// select: the first source to win [SelectToken.TrySelect] owns the select,
// and every other delivery attempt is refused. Tokens are single-use.
type SelectToken struct {
	state   atomic.Int32
	done    chan struct{}
	handler func()
	err     error
}

func newSelectToken() *SelectToken {
	return &SelectToken{done: make(chan struct{})}
}

// TrySelect attempts to claim the select for the calling source. A source
// that wins must follow up with [SelectToken.Complete] without suspending
// in between.
func (t *SelectToken) TrySelect() bool {
	return t.state.CompareAndSwap(selUndecided, selSelected)
}

// Complete publishes the winning clause's handler and wakes the select.
// Only valid after a won TrySelect.
func (t *SelectToken) Complete(handler func()) {
	t.handler = handler
	close(t.done)
}

// CompleteError resolves a won TrySelect with a failure instead of a
// handler. Used by sources whose selected operation can still fail before
// delivery, such as a send clause whose channel closes after selection.
func (t *SelectToken) CompleteError(err error) {
	t.err = err
	close(t.done)
}

// Fail resolves the whole select with a source failure, if nothing else
// decided it first.
func (t *SelectToken) Fail(err error) bool {
	if !t.state.CompareAndSwap(selUndecided, selFailed) {
		return false
	}
	t.err = err
	close(t.done)
	return true
}

func (t *SelectToken) tryCancel(cause error) bool {
	if !t.state.CompareAndSwap(selUndecided, selCancelled) {
		return false
	}
	if cause == nil {
		cause = ErrCancelled
	}
	t.err = cause
	close(t.done)
	return true
}

func (t *SelectToken) decided() bool {
	return t.state.Load() != selUndecided
}

// Wait resolves the select: exactly one clause's operation is performed and
// its handler runs on the calling goroutine before Wait returns nil. If a
// source has already failed, Wait returns that failure and no clause runs.
// If ctx is cancelled while parked, the cancellation races the sources
// through the token; winning returns ctx's cause with no clause selected.
//
// A Select is single-use; Wait must be called exactly once, with at least
// one clause
func (s *Select) Wait(ctx context.Context) error {
	n := len(s.clauses)
	if n == 0 {
		panic("strand: select requires at least one clause")
	}
	offset := 0
	if s.unbiased && n > 1 {
		offset = rand.IntN(n)
	}

	// Fast path: first ready clause in scan order wins.
	for i := range n {
		c := s.clauses[(i+offset)%n]
		h, ok, err := c.Try()
		if err != nil {
			return err
		}
		if ok {
			h()
			return nil
		}
	}

	// Parked path: register with every source, then wait for the first
	// winner of the token.
	tok := newSelectToken()
	cancels := make([]func(), 0, n)
	for i := range n {
		c := s.clauses[(i+offset)%n]
		cancel, err := c.Register(tok)
		if cancel != nil {
			cancels = append(cancels, cancel)
		}
		if err != nil {
			tok.Fail(err)
			break
		}
		if tok.decided() {
			break
		}
	}

	select {
	case <-tok.done:
	case <-ctx.Done():
		if !tok.tryCancel(context.Cause(ctx)) {
			// A source already won; its delivery completes promptly.
			<-tok.done
		}
	}
	for _, cancel := range cancels {
		cancel()
	}

	if t := tok.state.Load(); t == selFailed || t == selCancelled {
		return tok.err
	}
	if tok.handler == nil {
		// Selected but resolved through CompleteError.
		return tok.err
	}
	tok.handler()
	return nil
}

// OnJoin adds a clause that is selected when j reaches a terminal state,
// successful or not, mirroring [Job.Join]'s absorb-everything contract.
func (s *Select) OnJoin(j *Job, fn func()) {
	if j == nil || fn == nil {
		panic("strand: OnJoin requires a job and a handler")
	}
	s.Add(&joinClause{j: j, fn: fn})
}

type joinClause struct {
	j  *Job
	fn func()
}

func (c *joinClause) Try() (func(), bool, error) {
	c.j.Start()
	if c.j.IsCompleted() {
		return c.fn, true, nil
	}
	return nil, false, nil
}

func (c *joinClause) Register(tok *SelectToken) (func(), error) {
	dispose := c.j.InvokeOnCompletion(func(error) {
		if tok.TrySelect() {
			tok.Complete(c.fn)
		}
	})
	return dispose, nil
}

// OnAwait adds a clause selected when d completes with a value; a failed or
// cancelled d resolves the whole select with its cause, mirroring
// [Deferred.Await].
func OnAwait[T any](s *Select, d *Deferred[T], fn func(T)) {
	if d == nil || fn == nil {
		panic("strand: OnAwait requires a deferred and a handler")
	}
	s.Add(&awaitClause[T]{d: d, fn: fn})
}

type awaitClause[T any] struct {
	d  *Deferred[T]
	fn func(T)
}

func awaitCause(cause error) error {
	if ce, ok := cause.(*CancelledError); ok && ce.Cause != nil {
		return ce.Cause
	}
	return cause
}

func (c *awaitClause[T]) Try() (func(), bool, error) {
	c.d.Start()
	if !c.d.IsCompleted() {
		return nil, false, nil
	}
	if cause := c.d.Cause(); cause != nil {
		return nil, false, awaitCause(cause)
	}
	d := c.d
	return func() { c.fn(d.value) }, true, nil
}

func (c *awaitClause[T]) Register(tok *SelectToken) (func(), error) {
	dispose := c.d.InvokeOnCompletion(func(cause error) {
		if cause != nil {
			tok.Fail(awaitCause(cause))
			return
		}
		if tok.TrySelect() {
			d := c.d
			tok.Complete(func() { c.fn(d.value) })
		}
	})
	return dispose, nil
}
