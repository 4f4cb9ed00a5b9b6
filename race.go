package strand

import (
	"context"
	"fmt"
)

// Race runs all tasks concurrently inside a supervised scope and returns
// the result of the first task to succeed (return nil error). The
// remaining tasks are cancelled immediately upon the first success and
// left to unwind; supervision keeps their failures from propagating.
//
// If all tasks fail, Race returns the zero value and the last error
// observed. If ctx is cancelled before any task succeeds, Race cancels
// the scope and returns the cancellation cause.
//
// If tasks is empty, Race returns (zero, nil).
//
// Race panics if any element of tasks is nil.
func Race[T any](
	ctx context.Context,
	tasks ...func(context.Context) (T, error),
) (T, error) {
	var zero T
	if len(tasks) == 0 {
		return zero, nil
	}
	for i, fn := range tasks {
		if fn == nil {
			panic(fmt.Sprintf("strand: Race task[%d] must not be nil", i))
		}
	}

	s := NewScope(ctx, WithSupervisor())

	type outcome struct {
		val T
		err error
	}

	// Buffered so losers can report without blocking after the first
	// success is picked up.
	results := make(chan outcome, len(tasks))

	for i, fn := range tasks {
		s.Launch(fmt.Sprintf("race[%d]", i), func(ctx context.Context) error {
			val, err := fn(ctx)
			results <- outcome{val: val, err: err}
			return err
		}, Supervised(true))
	}

	var lastErr error
	for range tasks {
		select {
		case res := <-results:
			if res.err == nil {
				s.Cancel(nil)
				return res.val, nil
			}
			lastErr = res.err
		case <-ctx.Done():
			cause := context.Cause(ctx)
			s.Cancel(cause)
			return zero, cause
		}
	}
	s.Cancel(nil)
	return zero, lastErr
}
