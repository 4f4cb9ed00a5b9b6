package channel

import (
	"github.com/strandlib/strand"
)

// OnSend adds a clause to s that is selected when v is delivered into c.
// A closed channel resolves the whole select with an error matching
// [ErrClosedForSend].
func OnSend[T any](s *strand.Select, c *Channel[T], v T, fn func()) {
	if c == nil || fn == nil {
		panic("channel: OnSend requires a channel and a handler")
	}
	s.Add(&sendClause[T]{c: c, val: v, fn: fn})
}

// OnReceive adds a clause to s that is selected when a value is taken from
// c. A closed, drained channel resolves the whole select with an error
// matching [ErrClosed].
func OnReceive[T any](s *strand.Select, c *Channel[T], fn func(T)) {
	if c == nil || fn == nil {
		panic("channel: OnReceive requires a channel and a handler")
	}
	s.Add(&recvClause[T]{c: c, fn: fn})
}

type sendClause[T any] struct {
	c   *Channel[T]
	val T
	fn  func()
}

func (cl *sendClause[T]) Try() (func(), bool, error) {
	ok, err := cl.c.Offer(cl.val)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return cl.fn, true, nil
	}
	return nil, false, nil
}

func (cl *sendClause[T]) Register(tok *strand.SelectToken) (func(), error) {
	c := cl.c
	c.mu.Lock()
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return nil, newCloseError(cause, true)
	}
	if c.hasReceiverLocked() || !c.buf.full() {
		// The state cannot change while the lock is held, so winning the
		// token guarantees delivery.
		if !tok.TrySelect() {
			c.mu.Unlock()
			return nil, nil
		}
		// Receiver-first, mirroring Send: buffering the value past a
		// parked receiver would leave it parked with nothing to wake it.
		if complete := c.deliverLocked(cl.val); complete != nil {
			c.mu.Unlock()
			complete()
			tok.Complete(cl.fn)
			return nil, nil
		}
		if !c.buf.full() {
			c.buf.push(cl.val)
			c.mu.Unlock()
			tok.Complete(cl.fn)
			return nil, nil
		}
		// Every visible receiver was another select that decided
		// elsewhere in the meantime. The token is already won, so park
		// committed; a future receiver or close resolves it.
		w := &sendWaiter[T]{tok: tok, fn: cl.fn, val: cl.val, committed: true}
		c.sendq = append(c.sendq, w)
		c.mu.Unlock()
		return nil, nil
	}
	w := &sendWaiter[T]{tok: tok, fn: cl.fn, val: cl.val}
	c.sendq = append(c.sendq, w)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		w.removed = true
		c.mu.Unlock()
	}, nil
}

type recvClause[T any] struct {
	c  *Channel[T]
	fn func(T)
}

func (cl *recvClause[T]) Try() (func(), bool, error) {
	v, ok, err := cl.c.Poll()
	if err != nil {
		return nil, false, err
	}
	if ok {
		fn := cl.fn
		return func() { fn(v) }, true, nil
	}
	return nil, false, nil
}

func (cl *recvClause[T]) Register(tok *strand.SelectToken) (func(), error) {
	c := cl.c
	c.mu.Lock()
	if !c.buf.empty() {
		if tok.TrySelect() {
			v, _ := c.buf.pop()
			complete := c.refillLocked()
			c.mu.Unlock()
			if complete != nil {
				complete()
			}
			fn := cl.fn
			tok.Complete(func() { fn(v) })
			return nil, nil
		}
		c.mu.Unlock()
		return nil, nil
	}
	if c.hasSenderLocked() {
		if !tok.TrySelect() {
			c.mu.Unlock()
			return nil, nil
		}
		if v, complete, ok := c.takeSenderLocked(); ok {
			c.mu.Unlock()
			complete()
			fn := cl.fn
			tok.Complete(func() { fn(v) })
			return nil, nil
		}
		w := &recvWaiter[T]{tok: tok, fn: cl.fn, committed: true}
		c.recvq = append(c.recvq, w)
		c.mu.Unlock()
		return nil, nil
	}
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return nil, newCloseError(cause, false)
	}
	w := &recvWaiter[T]{tok: tok, fn: cl.fn}
	c.recvq = append(c.recvq, w)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		w.removed = true
		c.mu.Unlock()
	}, nil
}

func (c *Channel[T]) hasReceiverLocked() bool {
	for _, r := range c.recvq {
		if !r.removed {
			return true
		}
	}
	return false
}

func (c *Channel[T]) hasSenderLocked() bool {
	for _, s := range c.sendq {
		if !s.removed {
			return true
		}
	}
	return false
}
