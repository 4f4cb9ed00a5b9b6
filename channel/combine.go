package channel

import (
	"context"
	"fmt"

	"github.com/strandlib/strand"
)

// Merge combines multiple input channels into a single output channel
// (fan-in). The output is closed when all inputs are closed, or closed
// with a cause when an input fails abnormally or ctx is cancelled. The
// order of values across inputs is non-deterministic.
func Merge[T any](ctx context.Context, ins ...*Channel[T]) *Channel[T] {
	out := New[T](0)
	s := strand.NewScope(ctx)
	for i, in := range ins {
		s.Launch(fmt.Sprintf("merge[%d]", i), func(ctx context.Context) error {
			for {
				v, err := in.Receive(ctx)
				if err != nil {
					if IsClosed(err) && in.Cause() == nil {
						return nil
					}
					return err
				}
				if err := out.Send(ctx, v); err != nil {
					return err
				}
			}
		})
	}
	go func() {
		// Join off the caller's context so a cancelled ctx still drains
		// the forwarders before the close is published.
		out.Close(s.Wait(context.Background()))
	}()
	return out
}

// Tee broadcasts every value from in to n independent output channels.
// All outputs receive every value. The outputs are closed when in is
// closed, carrying in's failure cause if any.
//
// A slow consumer blocks the broadcast to all others; give the outputs
// capacity to decouple them. Tee panics if n is not positive.
func Tee[T any](ctx context.Context, in *Channel[T], n int, capacity int) []*Channel[T] {
	if n <= 0 {
		panic("channel: Tee requires n > 0")
	}
	outs := make([]*Channel[T], n)
	for i := range outs {
		outs[i] = New[T](capacity)
	}
	s := strand.NewScope(ctx)
	s.Launch("tee", func(ctx context.Context) error {
		for {
			v, err := in.Receive(ctx)
			if err != nil {
				if IsClosed(err) && in.Cause() == nil {
					return nil
				}
				return err
			}
			for _, out := range outs {
				if err := out.Send(ctx, v); err != nil {
					return err
				}
			}
		}
	})
	go func() {
		err := s.Wait(context.Background())
		for _, out := range outs {
			out.Close(err)
		}
	}()
	return outs
}

// FanOut distributes values from in across n output channels in
// round-robin order. Each output is closed when in is closed. FanOut
// panics if n is not positive.
func FanOut[T any](ctx context.Context, in *Channel[T], n int) []*Channel[T] {
	if n <= 0 {
		panic("channel: FanOut requires n > 0")
	}
	outs := make([]*Channel[T], n)
	for i := range outs {
		outs[i] = New[T](0)
	}
	s := strand.NewScope(ctx)
	s.Launch("fanout", func(ctx context.Context) error {
		idx := 0
		for {
			v, err := in.Receive(ctx)
			if err != nil {
				if IsClosed(err) && in.Cause() == nil {
					return nil
				}
				return err
			}
			if err := outs[idx%n].Send(ctx, v); err != nil {
				return err
			}
			idx++
		}
	})
	go func() {
		err := s.Wait(context.Background())
		for _, out := range outs {
			out.Close(err)
		}
	}()
	return outs
}
