package strand

import (
	"errors"
	"fmt"
)

// JobError wraps a child job's failure together with the job's name, so a
// parent's aggregated cause can be attributed to the job that produced it.
// Failure propagation wraps every child failure in a JobError before
// merging it into the parent.
type JobError struct {
	Name string
	Err  error
}

func (e *JobError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("job failed: %v", e.Err)
	}
	return fmt.Sprintf("job %q failed: %v", e.Name, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// IsJobError reports whether err (or any error in its chain) is a [*JobError].
func IsJobError(err error) bool {
	if err == nil {
		return false
	}
	var je *JobError
	return errors.As(err, &je)
}

// JobOf extracts the name from the first [*JobError] in err's chain.
// Returns false if no JobError is found.
func JobOf(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var je *JobError
	if errors.As(err, &je) {
		return je.Name, true
	}
	return "", false
}

// CauseOf unwraps the first [*JobError] in err's chain and returns its
// underlying cause. If err is not a JobError, it is returned as-is.
// Returns nil if err is nil.
func CauseOf(err error) error {
	if err == nil {
		return nil
	}

	var je *JobError
	if errors.As(err, &je) {
		return je.Err
	}

	return err
}

// AllJobErrors recursively collects every [*JobError] from err's chain,
// including errors merged by multi-child failure aggregation. Returns nil
// if none are found.
func AllJobErrors(err error) []*JobError {
	if err == nil {
		return nil
	}

	var out []*JobError
	collectJobErrors(err, &out)
	return out
}

func collectJobErrors(err error, out *[]*JobError) {
	switch e := err.(type) {
	case *JobError:
		*out = append(*out, e)

	case interface{ Unwrap() []error }:
		for _, sub := range e.Unwrap() {
			collectJobErrors(sub, out)
		}

	case interface{ Unwrap() error }:
		collectJobErrors(e.Unwrap(), out)
	}
}
