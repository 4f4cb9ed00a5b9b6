package strand

import (
	"context"
	"sync"
)

// Semaphore bounds concurrent access to a resource with a fixed number of
// permits. Like [Mutex], a contended Acquire suspends the caller on a
// [Continuation] rather than blocking, and Release hands a permit directly
// to the oldest live waiter so arrival order is honored.
type Semaphore struct {
	mu      sync.Mutex
	permits int
	free    int
	waiters []*permitWaiter
}

type permitWaiter struct {
	cont *Continuation[struct{}]
}

// NewSemaphore creates a semaphore with n permits, all initially free.
// Panics if n <= 0.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		panic("strand: NewSemaphore requires n > 0")
	}
	return &Semaphore{permits: n, free: n}
}

// Acquire takes a permit, suspending until one is free or ctx is
// cancelled. Returns ctx's cause on cancellation.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.free > 0 {
		s.free--
		s.mu.Unlock()
		return nil
	}
	w := &permitWaiter{cont: NewContinuation[struct{}]()}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	_, err := w.cont.Suspend(ctx)
	return err
}

// TryAcquire takes a permit without suspending, reporting whether it
// succeeded.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.free == 0 {
		return false
	}
	s.free--
	return true
}

// Release returns a permit. If waiters are parked, the permit transfers
// directly to the oldest one. Releasing more permits than the semaphore
// holds panics.
func (s *Semaphore) Release() {
	s.mu.Lock()
	for len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		t, ok := w.cont.TryResume(struct{}{})
		if !ok {
			// Waiter was cancelled; try the next one.
			continue
		}
		s.mu.Unlock()
		w.cont.CompleteResume(t)
		return
	}
	if s.free == s.permits {
		s.mu.Unlock()
		panic("strand: Release of a full Semaphore")
	}
	s.free++
	s.mu.Unlock()
}

// Available returns the number of free permits. The value may be stale the
// moment it is read.
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.free
}

// WithPermit runs fn while holding one permit.
func (s *Semaphore) WithPermit(ctx context.Context, fn func() error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release()
	return fn()
}
