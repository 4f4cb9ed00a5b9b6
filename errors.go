package strand

import (
	"errors"
	"fmt"
)

// ErrCancelled is the sentinel matched by [errors.Is] for every cancellation,
// whether it came from an explicit [Job.Cancel], a failing sibling, or a
// parent going down. The concrete error in the chain is a [*CancelledError]
// carrying the original cause.
var ErrCancelled = errors.New("strand: job cancelled")

// CancelledError is the terminal cause of a cancelled [Job]. When the
// cancellation was triggered by a failure (the job's own body or a child),
// Cause holds the original error; for a plain Cancel with no cause, Cause
// is nil.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause == nil {
		return "strand: job cancelled"
	}
	return fmt.Sprintf("strand: job cancelled: %v", e.Cause)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// Is reports a match for [ErrCancelled], so callers can test
// errors.Is(err, strand.ErrCancelled) without caring about the wrapping.
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// cancelledCause normalizes an arbitrary cancel cause into a *CancelledError.
// Already-wrapped causes pass through so repeated propagation does not stack
// wrappers.
func cancelledCause(cause error) *CancelledError {
	if cause == nil {
		return &CancelledError{}
	}
	var ce *CancelledError
	if errors.As(cause, &ce) {
		return ce
	}
	return &CancelledError{Cause: cause}
}

// IsCancellation reports whether err is a cancellation signal rather than a
// genuine failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// ErrTimeout is the cancellation cause used by [WithTimeout] when the
// deadline elapses before the body completes.
var ErrTimeout = errors.New("strand: timed out")
