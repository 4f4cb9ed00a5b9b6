package strand

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"
)

func TestJobError_Error(t *testing.T) {
	err := errors.New("something went wrong")
	je := &JobError{Name: "worker-1", Err: err}
	if got, want := je.Error(), `job "worker-1" failed: something went wrong`; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	anon := &JobError{Err: err}
	if got, want := anon.Error(), "job failed: something went wrong"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestJobError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	je := &JobError{Name: "w", Err: inner}
	if !errors.Is(je, inner) {
		t.Fatal("errors.Is should see through JobError")
	}
}

func TestIsJobError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"direct", &JobError{Name: "a", Err: errors.New("x")}, true},
		{"wrapped", fmt.Errorf("outer: %w", &JobError{Name: "a", Err: errors.New("x")}), true},
		{"cancelled wrapping", &CancelledError{Cause: &JobError{Name: "a", Err: errors.New("x")}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsJobError(tc.err); got != tc.want {
				t.Fatalf("IsJobError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestJobOf(t *testing.T) {
	je := &JobError{Name: "fetcher", Err: errors.New("x")}
	name, ok := JobOf(fmt.Errorf("wrapped: %w", je))
	if !ok || name != "fetcher" {
		t.Fatalf("JobOf = (%q, %v)", name, ok)
	}
	if _, ok := JobOf(errors.New("plain")); ok {
		t.Fatal("JobOf on a plain error should report false")
	}
	if _, ok := JobOf(nil); ok {
		t.Fatal("JobOf(nil) should report false")
	}
}

func TestCauseOf(t *testing.T) {
	inner := errors.New("inner")
	if got := CauseOf(&JobError{Name: "w", Err: inner}); got != inner {
		t.Fatalf("CauseOf = %v, want %v", got, inner)
	}
	plain := errors.New("plain")
	if got := CauseOf(plain); got != plain {
		t.Fatal("CauseOf should pass non-JobErrors through")
	}
	if CauseOf(nil) != nil {
		t.Fatal("CauseOf(nil) should be nil")
	}
}

func TestAllJobErrors(t *testing.T) {
	a := &JobError{Name: "a", Err: errors.New("ea")}
	b := &JobError{Name: "b", Err: errors.New("eb")}
	merged := multierr.Append(error(a), error(b))

	got := AllJobErrors(&CancelledError{Cause: merged})
	if len(got) != 2 {
		t.Fatalf("AllJobErrors found %d errors, want 2", len(got))
	}
	if got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("AllJobErrors order = %q, %q", got[0].Name, got[1].Name)
	}

	if AllJobErrors(nil) != nil {
		t.Fatal("AllJobErrors(nil) should be nil")
	}
}

func TestCancelledErrorMatching(t *testing.T) {
	cause := errors.New("root cause")
	ce := cancelledCause(cause)
	if !errors.Is(ce, ErrCancelled) {
		t.Fatal("CancelledError should match ErrCancelled")
	}
	if !errors.Is(ce, cause) {
		t.Fatal("CancelledError should unwrap to its cause")
	}
	if !IsCancellation(ce) {
		t.Fatal("IsCancellation should report true")
	}

	// Re-wrapping must not stack.
	again := cancelledCause(ce)
	if again != ce {
		t.Fatal("cancelledCause should pass an existing *CancelledError through")
	}

	if cancelledCause(nil).Cause != nil {
		t.Fatal("nil cause should normalize to an empty CancelledError")
	}
}
