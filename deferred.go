package strand

import "context"

// Deferred is a [Job] that also carries a typed result. Obtain one from
// [Async]; collect the result with [Deferred.Await].
type Deferred[T any] struct {
	*Job
	value T
}

// Async launches fn as a child of the scope and returns a [Deferred] for
// its result. Unlike [Job.Join], [Deferred.Await] rethrows the failure or
// cancellation cause.
func Async[T any](s *Scope, name string, fn func(ctx context.Context) (T, error), opts ...LaunchOption) *Deferred[T] {
	if fn == nil {
		panic("strand: Async requires a non-nil task function")
	}
	d := &Deferred[T]{}
	d.Job = s.Launch(name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		// Written before the job's terminal transition closes done, so
		// every Await observes it.
		d.value = v
		return nil
	}, opts...)
	return d
}

// Await suspends until the job is terminal and returns the result. If the
// job failed, Await returns the original failure; if it was cancelled
// without a failure, the [*CancelledError]. This is the deliberate
// asymmetry with [Job.Join], which absorbs both.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	var zero T
	d.Start()
	select {
	case <-d.done:
	case <-ctx.Done():
		select {
		case <-d.done:
		default:
			return zero, context.Cause(ctx)
		}
	}
	if cause := d.Cause(); cause != nil {
		if ce, ok := cause.(*CancelledError); ok && ce.Cause != nil {
			return zero, ce.Cause
		}
		return zero, cause
	}
	return d.value, nil
}
