package strand

import "sync/atomic"

// jobState is the lifecycle state of a Job. Transitions form a DAG; no state
// is ever revisited.
type jobState int32

const (
	stateNew        jobState = iota // lazily created, not yet started
	stateActive                     // body running or runnable
	stateCompleting                 // body done, waiting on children
	stateCancelling                 // cancel requested, waiting on body/children
	stateCompleted                  // terminal, successful
	stateCancelled                  // terminal, carries a cancellation cause
)

func (s jobState) String() string {
	switch s {
	case stateNew:
		return "New"
	case stateActive:
		return "Active"
	case stateCompleting:
		return "Completing"
	case stateCancelling:
		return "Cancelling"
	case stateCompleted:
		return "Completed"
	case stateCancelled:
		return "Cancelled"
	default:
		return "Invalid"
	}
}

func (s jobState) terminal() bool {
	return s == stateCompleted || s == stateCancelled
}

// stateCell is a single-word lifecycle cell mutated only through CAS.
// Higher layers retry on CAS failure; the cell itself never blocks.
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() jobState { return jobState(c.v.Load()) }

func (c *stateCell) cas(old, new jobState) bool {
	return c.v.CompareAndSwap(int32(old), int32(new))
}

func (c *stateCell) init(s jobState) { c.v.Store(int32(s)) }
