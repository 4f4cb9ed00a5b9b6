// Package channel provides suspending channels for the strand runtime:
// communication pipes whose Send suspends when the channel is full and
// whose Receive suspends when it is empty, with close-with-cause teardown
// and select integration.
//
// Unlike native Go channels, a strand channel can carry a close cause to
// its consumers, offers conflated and unbounded buffering policies, and
// parks waiters on strand continuations so that cancellation, timeouts and
// select races all resolve through the same one-shot decision cells.
//
// Construct channels with [New], [NewUnbounded] or [NewConflated]:
//
//	ch := channel.New[int](8)        // suspends senders beyond 8 queued values
//	ch := channel.New[int](0)        // rendezvous: every send meets a receive
//	ch := channel.NewUnbounded[int]()
//	ch := channel.NewConflated[int]() // keeps only the latest value
package channel
