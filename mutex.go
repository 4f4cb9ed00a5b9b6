package strand

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mutex is a mutual-exclusion lock whose Lock suspends instead of spinning
// or blocking the scheduler: a contended Lock parks the caller on a
// [Continuation] and Unlock hands the lock directly to the oldest live
// waiter, so the lock never goes through an unlocked window under
// contention and arrival order is honored.
//
// The zero value is an unlocked Mutex. A Mutex is not reentrant.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []*lockWaiter
}

// A parked Lock or OnLock clause. Exactly one of cont and tok is set.
// Cancelled entries are skipped lazily by Unlock rather than spliced out.
type lockWaiter struct {
	cont    *Continuation[struct{}]
	tok     *SelectToken
	fn      func()
	removed atomic.Bool
}

// Lock acquires the mutex, suspending until it is available. A nil return
// means the lock is held by the caller. Cancellation of ctx while waiting
// returns its cause and leaves the mutex unowned by the caller.
func (m *Mutex) Lock(ctx context.Context) error {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return nil
	}
	w := &lockWaiter{cont: NewContinuation[struct{}]()}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	_, err := w.cont.Suspend(ctx)
	return err
}

// TryLock acquires the mutex without suspending, reporting whether it
// succeeded.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Locked reports whether the mutex is currently held.
func (m *Mutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Unlock releases the mutex. If waiters are parked, ownership transfers
// directly to the oldest one without ever marking the mutex unlocked.
// Unlocking an unlocked Mutex panics.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		panic("strand: Unlock of unlocked Mutex")
	}
	for len(m.waiters) > 0 {
		w := m.waiters[0]
		m.waiters = m.waiters[1:]
		if w.removed.Load() {
			continue
		}
		if w.cont != nil {
			t, ok := w.cont.TryResume(struct{}{})
			if !ok {
				// Waiter was cancelled; try the next one.
				continue
			}
			m.mu.Unlock()
			w.cont.CompleteResume(t)
			return
		}
		if w.tok.TrySelect() {
			fn := w.fn
			m.mu.Unlock()
			w.tok.Complete(fn)
			return
		}
	}
	m.locked = false
	m.mu.Unlock()
}

// WithLock runs fn while holding the mutex.
func (m *Mutex) WithLock(ctx context.Context, fn func() error) error {
	if err := m.Lock(ctx); err != nil {
		return err
	}
	defer m.Unlock()
	return fn()
}

// OnLock adds a clause selected when the mutex is acquired. The handler
// runs with the lock held and is responsible for releasing it.
func (s *Select) OnLock(m *Mutex, fn func()) {
	if m == nil || fn == nil {
		panic("strand: OnLock requires a mutex and a handler")
	}
	s.Add(&lockClause{m: m, fn: fn})
}

type lockClause struct {
	m  *Mutex
	fn func()
}

func (c *lockClause) Try() (func(), bool, error) {
	if c.m.TryLock() {
		return c.fn, true, nil
	}
	return nil, false, nil
}

func (c *lockClause) Register(tok *SelectToken) (func(), error) {
	c.m.mu.Lock()
	if !c.m.locked {
		// Became free between Try and Register.
		if tok.TrySelect() {
			c.m.locked = true
			c.m.mu.Unlock()
			tok.Complete(c.fn)
			return nil, nil
		}
		c.m.mu.Unlock()
		return nil, nil
	}
	w := &lockWaiter{tok: tok, fn: c.fn}
	c.m.waiters = append(c.m.waiters, w)
	c.m.mu.Unlock()
	return func() { w.removed.Store(true) }, nil
}
