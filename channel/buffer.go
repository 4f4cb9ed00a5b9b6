package channel

// A buffer is the storage policy behind a channel. Implementations are not
// safe for concurrent use; the owning channel serializes access.
type buffer[T any] interface {
	// full reports whether a push must suspend the sender instead.
	full() bool
	empty() bool
	push(v T)
	pop() (T, bool)
	len() int
	// capacity is the declared size: 0 for rendezvous, capUnbounded for
	// unbounded and conflated buffers.
	capacity() int
}

const capUnbounded = -1

// ringBuffer backs fixed-capacity channels. Values keep FIFO order; a full
// ring suspends senders.
type ringBuffer[T any] struct {
	items []T
	head  int
	size  int
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	return &ringBuffer[T]{items: make([]T, capacity)}
}

func (b *ringBuffer[T]) full() bool    { return b.size == len(b.items) }
func (b *ringBuffer[T]) empty() bool   { return b.size == 0 }
func (b *ringBuffer[T]) len() int      { return b.size }
func (b *ringBuffer[T]) capacity() int { return len(b.items) }

func (b *ringBuffer[T]) push(v T) {
	b.items[(b.head+b.size)%len(b.items)] = v
	b.size++
}

func (b *ringBuffer[T]) pop() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	v := b.items[b.head]
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.size--
	return v, true
}

// linkedBuffer backs unbounded channels: push never reports full, so
// senders never suspend.
type linkedBuffer[T any] struct {
	items []T
	head  int
}

func (b *linkedBuffer[T]) full() bool    { return false }
func (b *linkedBuffer[T]) empty() bool   { return b.head == len(b.items) }
func (b *linkedBuffer[T]) len() int      { return len(b.items) - b.head }
func (b *linkedBuffer[T]) capacity() int { return capUnbounded }

func (b *linkedBuffer[T]) push(v T) {
	b.items = append(b.items, v)
}

func (b *linkedBuffer[T]) pop() (T, bool) {
	var zero T
	if b.head == len(b.items) {
		return zero, false
	}
	v := b.items[b.head]
	b.items[b.head] = zero
	b.head++
	// Reclaim the drained prefix once it dominates the backing array.
	if b.head > 32 && b.head*2 >= len(b.items) {
		n := copy(b.items, b.items[b.head:])
		clear(b.items[n:])
		b.items = b.items[:n]
		b.head = 0
	}
	return v, true
}

// conflatedBuffer holds at most the latest value: a push onto a non-empty
// buffer overwrites, so senders never suspend and slow receivers only ever
// see the most recent element.
type conflatedBuffer[T any] struct {
	value T
	set   bool
}

func (b *conflatedBuffer[T]) full() bool    { return false }
func (b *conflatedBuffer[T]) empty() bool   { return !b.set }
func (b *conflatedBuffer[T]) capacity() int { return capUnbounded }

func (b *conflatedBuffer[T]) len() int {
	if b.set {
		return 1
	}
	return 0
}

func (b *conflatedBuffer[T]) push(v T) {
	b.value = v
	b.set = true
}

func (b *conflatedBuffer[T]) pop() (T, bool) {
	var zero T
	if !b.set {
		return zero, false
	}
	v := b.value
	b.value = zero
	b.set = false
	return v, true
}

// rendezvousBuffer stores nothing: it is always simultaneously full and
// empty, which forces every transfer through the direct sender/receiver
// handoff.
type rendezvousBuffer[T any] struct{}

func (rendezvousBuffer[T]) full() bool    { return true }
func (rendezvousBuffer[T]) empty() bool   { return true }
func (rendezvousBuffer[T]) len() int      { return 0 }
func (rendezvousBuffer[T]) capacity() int { return 0 }
func (rendezvousBuffer[T]) push(T)        { panic("channel: push on rendezvous buffer") }

func (rendezvousBuffer[T]) pop() (T, bool) {
	var zero T
	return zero, false
}
