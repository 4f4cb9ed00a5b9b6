package channel

import (
	"context"
	"iter"
	"sync"

	"github.com/strandlib/strand"
)

// Sender is the send side of a channel.
type Sender[T any] interface {
	Send(ctx context.Context, v T) error
	Offer(v T) (bool, error)
	Close(cause error) bool
}

// Receiver is the receive side of a channel.
type Receiver[T any] interface {
	Receive(ctx context.Context) (T, error)
	Poll() (T, bool, error)
	Range(ctx context.Context) iter.Seq[T]
}

// Channel is a suspending communication pipe. The buffering policy fixed at
// construction decides when Send suspends; Receive suspends whenever no
// value is available. Closed channels stay drainable: buffered values are
// still delivered, and only then does Receive report the close.
//
// All methods are safe for concurrent use by any number of senders and
// receivers.
type Channel[T any] struct {
	mu     sync.Mutex
	buf    buffer[T]
	closed bool
	cause  error
	sendq  []*sendWaiter[T]
	recvq  []*recvWaiter[T]
}

var (
	_ Sender[int]   = (*Channel[int])(nil)
	_ Receiver[int] = (*Channel[int])(nil)
)

// A parked sender. Exactly one of cont and tok is set; committed marks a
// select clause that already won its token and is waiting for the delivery
// to be taken.
type sendWaiter[T any] struct {
	cont      *strand.Continuation[struct{}]
	tok       *strand.SelectToken
	fn        func()
	val       T
	committed bool
	removed   bool
}

type recvWaiter[T any] struct {
	cont      *strand.Continuation[T]
	tok       *strand.SelectToken
	fn        func(T)
	committed bool
	removed   bool
}

// New creates a channel with the given capacity. Capacity zero is a
// rendezvous channel: every Send suspends until a Receive takes the value
// directly. New panics on negative capacity.
func New[T any](capacity int) *Channel[T] {
	switch {
	case capacity < 0:
		panic("channel: New requires capacity >= 0")
	case capacity == 0:
		return &Channel[T]{buf: rendezvousBuffer[T]{}}
	default:
		return &Channel[T]{buf: newRingBuffer[T](capacity)}
	}
}

// NewRendezvous creates a capacity-zero channel. Equivalent to New with
// capacity 0; provided for call sites where the handoff is the point.
func NewRendezvous[T any]() *Channel[T] {
	return New[T](0)
}

// NewUnbounded creates a channel whose Send never suspends.
func NewUnbounded[T any]() *Channel[T] {
	return &Channel[T]{buf: &linkedBuffer[T]{}}
}

// NewConflated creates a channel that keeps only the most recent value:
// Send never suspends, and a value not yet taken is overwritten.
func NewConflated[T any]() *Channel[T] {
	return &Channel[T]{buf: &conflatedBuffer[T]{}}
}

// Send delivers v, suspending while the channel is full. It returns an
// error matching [ErrClosedForSend] if the channel is or becomes closed,
// or ctx's cause if the caller is cancelled while suspended.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	c.mu.Lock()
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return newCloseError(cause, true)
	}
	if complete := c.deliverLocked(v); complete != nil {
		c.mu.Unlock()
		complete()
		return nil
	}
	if !c.buf.full() {
		c.buf.push(v)
		c.mu.Unlock()
		return nil
	}
	w := &sendWaiter[T]{cont: strand.NewContinuation[struct{}](), val: v}
	c.sendq = append(c.sendq, w)
	c.mu.Unlock()

	_, err := awaitWaiter(ctx, &c.mu, w.cont, func() { w.removed = true })
	return err
}

// Offer delivers v without suspending, reporting whether it was accepted.
// A closed channel returns an error matching [ErrClosedForSend].
func (c *Channel[T]) Offer(v T) (bool, error) {
	c.mu.Lock()
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return false, newCloseError(cause, true)
	}
	if complete := c.deliverLocked(v); complete != nil {
		c.mu.Unlock()
		complete()
		return true, nil
	}
	if !c.buf.full() {
		c.buf.push(v)
		c.mu.Unlock()
		return true, nil
	}
	c.mu.Unlock()
	return false, nil
}

// Receive takes the next value, suspending while the channel is empty. On
// a closed channel it first drains buffered values, then returns an error
// matching [ErrClosed] carrying the close cause.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	c.mu.Lock()
	if v, ok := c.buf.pop(); ok {
		complete := c.refillLocked()
		c.mu.Unlock()
		if complete != nil {
			complete()
		}
		return v, nil
	}
	if v, complete, ok := c.takeSenderLocked(); ok {
		c.mu.Unlock()
		complete()
		return v, nil
	}
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return zero, newCloseError(cause, false)
	}
	w := &recvWaiter[T]{cont: strand.NewContinuation[T]()}
	c.recvq = append(c.recvq, w)
	c.mu.Unlock()

	return awaitWaiter(ctx, &c.mu, w.cont, func() { w.removed = true })
}

// Poll takes the next value without suspending. ok=false with a nil error
// means the channel is empty; a closed, drained channel returns an error
// matching [ErrClosed].
func (c *Channel[T]) Poll() (T, bool, error) {
	var zero T
	c.mu.Lock()
	if v, ok := c.buf.pop(); ok {
		complete := c.refillLocked()
		c.mu.Unlock()
		if complete != nil {
			complete()
		}
		return v, true, nil
	}
	if v, complete, ok := c.takeSenderLocked(); ok {
		c.mu.Unlock()
		complete()
		return v, true, nil
	}
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return zero, false, newCloseError(cause, false)
	}
	c.mu.Unlock()
	return zero, false, nil
}

// Close closes the channel with an optional cause, reporting whether this
// call closed it. Parked senders fail immediately; parked receivers fail
// once nothing is left to drain. Buffered values remain receivable.
func (c *Channel[T]) Close(cause error) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	c.cause = cause
	sendq, recvq := c.sendq, c.recvq
	c.sendq, c.recvq = nil, nil

	sendErr := newCloseError(cause, true)
	for _, s := range sendq {
		if s.removed {
			continue
		}
		if s.cont != nil {
			s.cont.ResumeError(sendErr)
			continue
		}
		if s.committed {
			s.tok.CompleteError(sendErr)
			continue
		}
		s.tok.Fail(sendErr)
	}
	recvErr := newCloseError(cause, false)
	for _, r := range recvq {
		if r.removed {
			continue
		}
		if r.cont != nil {
			r.cont.ResumeError(recvErr)
			continue
		}
		if r.committed {
			r.tok.CompleteError(recvErr)
			continue
		}
		r.tok.Fail(recvErr)
	}
	c.mu.Unlock()
	return true
}

// IsClosed reports whether the channel has been closed. Buffered values
// may still be receivable.
func (c *Channel[T]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ClosedForSend reports whether sends are rejected. True from the moment
// the channel is closed.
func (c *Channel[T]) ClosedForSend() bool {
	return c.IsClosed()
}

// ClosedForReceive reports whether receives are rejected: the channel is
// closed and its buffer drained.
func (c *Channel[T]) ClosedForReceive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed && c.buf.empty()
}

// Cause returns the close cause, or nil if the channel is open or was
// closed normally.
func (c *Channel[T]) Cause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// Len returns the number of buffered values.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

// Cap returns the declared capacity: 0 for rendezvous channels and -1 for
// unbounded and conflated ones.
func (c *Channel[T]) Cap() int {
	return c.buf.capacity()
}

// Range iterates received values until the channel is closed and drained
// or ctx is cancelled. An abnormal close cause is not surfaced here; check
// [Channel.Cause] after the loop when it matters.
//
//	for v := range ch.Range(ctx) {
//	    handle(v)
//	}
func (c *Channel[T]) Range(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := c.Receive(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// deliverLocked hands v directly to the oldest live parked receiver,
// bypassing the buffer. It returns the completion to run after the lock is
// released, or nil if no receiver took it.
func (c *Channel[T]) deliverLocked(v T) func() {
	for len(c.recvq) > 0 {
		r := c.recvq[0]
		c.recvq = c.recvq[1:]
		if r.removed {
			continue
		}
		if r.cont != nil {
			t, ok := r.cont.TryResume(v)
			if !ok {
				continue
			}
			cont := r.cont
			return func() { cont.CompleteResume(t) }
		}
		if r.committed {
			tok, fn := r.tok, r.fn
			return func() { tok.Complete(func() { fn(v) }) }
		}
		if r.tok.TrySelect() {
			tok, fn := r.tok, r.fn
			return func() { tok.Complete(func() { fn(v) }) }
		}
	}
	return nil
}

// refillLocked moves parked senders' values into freed buffer space,
// preserving arrival order. At most one sender is woken per freed slot, so
// the single deferred completion suffices.
func (c *Channel[T]) refillLocked() func() {
	for !c.buf.full() && len(c.sendq) > 0 {
		s := c.sendq[0]
		c.sendq = c.sendq[1:]
		if s.removed {
			continue
		}
		if s.cont != nil {
			t, ok := s.cont.TryResume(struct{}{})
			if !ok {
				continue
			}
			c.buf.push(s.val)
			cont := s.cont
			return func() { cont.CompleteResume(t) }
		}
		if s.committed {
			c.buf.push(s.val)
			tok, fn := s.tok, s.fn
			return func() { tok.Complete(fn) }
		}
		if s.tok.TrySelect() {
			c.buf.push(s.val)
			tok, fn := s.tok, s.fn
			return func() { tok.Complete(fn) }
		}
	}
	return nil
}

// takeSenderLocked takes a value directly from the oldest live parked
// sender when the buffer has nothing to offer.
func (c *Channel[T]) takeSenderLocked() (T, func(), bool) {
	var zero T
	for len(c.sendq) > 0 {
		s := c.sendq[0]
		c.sendq = c.sendq[1:]
		if s.removed {
			continue
		}
		if s.cont != nil {
			t, ok := s.cont.TryResume(struct{}{})
			if !ok {
				continue
			}
			cont := s.cont
			return s.val, func() { cont.CompleteResume(t) }, true
		}
		if s.committed {
			tok, fn := s.tok, s.fn
			return s.val, func() { tok.Complete(fn) }, true
		}
		if s.tok.TrySelect() {
			tok, fn := s.tok, s.fn
			return s.val, func() { tok.Complete(fn) }, true
		}
	}
	return zero, nil, false
}

// awaitWaiter parks on cont, taking mu around a cancellation attempt so
// queue scans never observe a waiter's cell flip underneath them: a waiter
// seen live under the lock stays claimable until the lock is released.
// mark flags the queue entry as removed and runs under mu together with
// the winning cancellation.
func awaitWaiter[T any](ctx context.Context, mu *sync.Mutex, cont *strand.Continuation[T], mark func()) (T, error) {
	select {
	case <-cont.Done():
	case <-ctx.Done():
		mu.Lock()
		cancelled := cont.Cancel(context.Cause(ctx))
		if cancelled {
			mark()
		}
		mu.Unlock()
		if !cancelled {
			<-cont.Done()
		}
	}
	return cont.Result()
}
