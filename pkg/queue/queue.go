// Package queue provides the bounded FIFO that buffers outbound messages
// while the connection is down.
//
// Items are appended at the tail and drained from the head. Draining is a
// two-step Peek/Pop so that an item leaves the queue only after the caller
// has delivered it. When the queue is full, Push discards the oldest item
// and counts it as dropped.
package queue

import "sync"

// DefaultMaxSize is the default bound on queued items.
const DefaultMaxSize = 1000

const initialCapacity = 16

// Queue is a thread-safe ring buffer with a drop-oldest overflow policy.
type Queue[T any] struct {
	mu      sync.Mutex
	buf     []T
	head    int // read position
	count   int
	maxSize int

	// Stats
	pushed  uint64
	popped  uint64
	dropped uint64
}

// Stats contains queue statistics.
type Stats struct {
	Len     int
	MaxSize int
	Pushed  uint64
	Popped  uint64
	Dropped uint64
}

// New creates a queue holding at most maxSize items.
// A maxSize of zero or less means unbounded.
func New[T any](maxSize int) *Queue[T] {
	if maxSize < 0 {
		maxSize = 0
	}
	capacity := initialCapacity
	if maxSize > 0 && maxSize < capacity {
		capacity = maxSize
	}
	return &Queue[T]{
		buf:     make([]T, capacity),
		maxSize: maxSize,
	}
}

// Push appends item at the tail. If the queue is at its bound, the oldest
// item is discarded first. Returns the number of items discarded.
func (q *Queue[T]) Push(item T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := 0
	if q.maxSize > 0 {
		for q.count >= q.maxSize {
			q.popLocked()
			q.dropped++
			dropped++
		}
	}

	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
	q.pushed++

	return dropped
}

// PushFront reinserts item at the head, ahead of everything queued.
// It never discards; the bound is enforced again on the next Push.
func (q *Queue[T]) PushFront(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.buf) {
		q.grow()
	}
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = item
	q.count++
}

// Peek returns the head item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// Pop removes and returns the head item.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	q.popped++
	return q.popLocked(), true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped returns how many items overflow has discarded.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear discards all queued items and returns how many there were.
// Cleared items are not counted as dropped.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	clear(q.buf)
	q.head = 0
	q.count = 0
	return n
}

// Snapshot returns a copy of the queued items in head-to-tail order.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, q.count)
	for i := range out {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:     q.count,
		MaxSize: q.maxSize,
		Pushed:  q.pushed,
		Popped:  q.popped,
		Dropped: q.dropped,
	}
}

// popLocked removes the head item. Must be called with lock held.
func (q *Queue[T]) popLocked() T {
	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return item
}

// grow doubles the ring capacity. Must be called with lock held.
func (q *Queue[T]) grow() {
	newBuf := make([]T, max(len(q.buf)*2, 1))
	for i := 0; i < q.count; i++ {
		newBuf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = newBuf
	q.head = 0
}
