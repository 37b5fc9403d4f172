// Package queue provides a fixed-capacity byte FIFO for driver buffers.
//
// A Fixed queue owns its storage for its whole lifetime and never grows:
// drivers size their TX/RX buffers once, at construction, and the data path
// stays allocation-free afterwards. The queue itself is not synchronized;
// drivers share it between foreground code and their interrupt handler by
// masking the port's interrupt line around every access.
package queue

import "errors"

// ErrInvalidCapacity is returned by New for a capacity below one.
var ErrInvalidCapacity = errors.New("queue: capacity must be at least 1")

// Fixed is a fixed-capacity circular FIFO of bytes.
//
// Push on a full queue and Pop/Front on an empty queue are contract
// violations and panic. Callers must check Full or Empty first; the driver
// code paths that use Fixed run in interrupt context where there is no error
// channel, so the checks are part of the calling convention rather than the
// return signature.
type Fixed struct {
	elems []byte
	head  int
	tail  int
	size  int
}

// New returns an empty queue holding at most capacity bytes.
func New(capacity int) (*Fixed, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Fixed{elems: make([]byte, capacity)}, nil
}

// Clear discards all queued bytes. Storage is not zeroed.
func (q *Fixed) Clear() {
	q.head = 0
	q.tail = 0
	q.size = 0
}

// Push appends b at the tail. The queue must not be full.
func (q *Fixed) Push(b byte) {
	if q.size == len(q.elems) {
		panic("queue: push on full queue")
	}
	q.elems[q.tail] = b
	if q.tail++; q.tail == len(q.elems) {
		q.tail = 0
	}
	q.size++
}

// Pop removes the byte at the head. The queue must not be empty.
func (q *Fixed) Pop() {
	if q.size == 0 {
		panic("queue: pop on empty queue")
	}
	if q.head++; q.head == len(q.elems) {
		q.head = 0
	}
	q.size--
}

// Front returns the byte at the head without removing it.
// The queue must not be empty.
func (q *Fixed) Front() byte {
	if q.size == 0 {
		panic("queue: front on empty queue")
	}
	return q.elems[q.head]
}

// Empty reports whether no bytes are queued.
func (q *Fixed) Empty() bool { return q.size == 0 }

// Full reports whether no more bytes can be pushed.
func (q *Fixed) Full() bool { return q.size == len(q.elems) }

// Len returns the number of queued bytes.
func (q *Fixed) Len() int { return q.size }

// Available returns how many more bytes can be pushed.
func (q *Fixed) Available() int { return len(q.elems) - q.size }

// Cap returns the fixed capacity.
func (q *Fixed) Cap() int { return len(q.elems) }
