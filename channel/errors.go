package channel

import (
	"errors"
	"fmt"
)

// ErrClosed is matched by errors from Receive on a closed, drained channel.
var ErrClosed = errors.New("channel: receive on closed channel")

// ErrClosedForSend is matched by errors from Send on a closed channel.
var ErrClosedForSend = errors.New("channel: send on closed channel")

// CloseError is the concrete error surfaced by operations on a closed
// channel. Cause is the error passed to [Channel.Close], or nil for a
// normal close.
type CloseError struct {
	Cause error
	send  bool
}

func newCloseError(cause error, send bool) *CloseError {
	return &CloseError{Cause: cause, send: send}
}

func (e *CloseError) Error() string {
	op := "receive on"
	if e.send {
		op = "send on"
	}
	if e.Cause != nil {
		return fmt.Sprintf("channel: %s closed channel: %v", op, e.Cause)
	}
	return fmt.Sprintf("channel: %s closed channel", op)
}

func (e *CloseError) Unwrap() error { return e.Cause }

// Is lets errors.Is match the side-specific sentinel regardless of cause.
func (e *CloseError) Is(target error) bool {
	if e.send {
		return target == ErrClosedForSend
	}
	return target == ErrClosed
}

// IsClosed reports whether err stems from operating on a closed channel,
// on either side.
func IsClosed(err error) bool {
	var ce *CloseError
	return errors.As(err, &ce)
}
