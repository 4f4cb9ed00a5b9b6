// Package strand provides a structured concurrency runtime for Go: a tree
// of cancellable jobs, suspending primitives built on one-shot
// continuations, and a family of dispatchers that control where work runs.
//
// Structured concurrency ensures that concurrent tasks have well-defined
// lifecycles: every job lives inside a parent scope, cancellation flows
// down the tree, and failures flow up it, preventing goroutine leaks and
// orphaned work.
//
// # Scopes and Jobs
//
// The primary entry point is [NewScope], which roots a job tree, and
// [Scope.Launch], which starts child jobs inside it:
//
//	s := strand.NewScope(ctx)
//	s.Launch("fetch", func(ctx context.Context) error {
//	    return fetch(ctx)
//	})
//	err := s.Wait(ctx)
//
// [Scope.Wait] completes the root and joins the whole tree; the first
// child failure cancels the siblings and is returned. A [Job] can be
// cancelled, joined, and observed individually; [Job.InvokeOnCompletion]
// registers completion handlers that fire exactly once.
//
// [Async] launches a job with a typed result as a [Deferred]. Joining a
// job absorbs its failure; [Deferred.Await] rethrows it. Use [Supervised]
// or [WithSupervisor] to keep a child's failure from taking down its
// siblings.
//
// # Continuations
//
// [Continuation] is the suspension primitive underneath everything else:
// a one-shot decision cell in which resumption, failure and cancellation
// race through a single compare-and-swap, so exactly one outcome wins.
// The two-phase [Continuation.TryResume] / [Continuation.CompleteResume]
// protocol lets a producer publish bookkeeping before the delivery
// becomes visible.
//
// # Dispatchers
//
// A [Dispatcher] decides where a job body runs. [Go] starts a goroutine
// per task, [Inline] runs on the caller, [PoolDispatcher] is a fixed
// worker pool, [NewLimitedDispatcher] caps the parallelism of any
// underlying dispatcher, and [EventLoop] confines tasks to a single
// caller-driven loop. [Yield] reschedules the caller through its
// dispatcher so long-running work stays fair.
//
// # Select
//
// [Select] waits on several suspending sources and commits to exactly
// one: job completion ([Select.OnJoin]), typed results ([OnAwait]), mutex
// acquisition ([Select.OnLock]), and channel operations from the channel
// subpackage. Resolution is atomic even when sources fire simultaneously.
//
// # Synchronization
//
// [Mutex] and [Semaphore] are suspending counterparts of their sync
// equivalents: a contended acquire parks the caller on a continuation and
// release hands ownership directly to the oldest live waiter.
//
// # Timers
//
// [Delay], [WithTimeout] and [TimerSource] provide suspending timers; a
// TimerSource wraps a mockable clock so time-based code stays testable.
//
// # Channels
//
// The [github.com/strandlib/strand/channel] subpackage provides
// suspending channels with rendezvous, buffered, unbounded and conflated
// policies, close-with-cause teardown, and fan-in/fan-out combinators.
package strand
