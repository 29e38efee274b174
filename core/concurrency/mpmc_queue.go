// File: core/concurrency/mpmc_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded multi-producer/multi-consumer queue with per-cell sequence
// numbers, after the Vyukov MPMC design. Backs the per-worker task queues
// of the executor.

package concurrency

import "sync/atomic"

const cacheLinePad = 64

// MPMCQueue is a bounded lock-free FIFO. Capacity is rounded up to the next
// power of two.
type MPMCQueue[T any] struct {
	head atomic.Uint64
	_    [cacheLinePad]byte
	tail atomic.Uint64
	_    [cacheLinePad]byte
	mask uint64
	ring []slot[T]
}

type slot[T any] struct {
	seq  atomic.Uint64
	data T
}

// NewMPMCQueue creates a queue holding at least capacity elements.
func NewMPMCQueue[T any](capacity int) *MPMCQueue[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &MPMCQueue[T]{
		mask: uint64(size - 1),
		ring: make([]slot[T], size),
	}
	for i := range q.ring {
		q.ring[i].seq.Store(uint64(i))
	}
	return q
}

// Enqueue adds val; returns false when the queue is full.
func (q *MPMCQueue[T]) Enqueue(val T) bool {
	for {
		tail := q.tail.Load()
		s := &q.ring[tail&q.mask]
		seq := s.seq.Load()
		switch dif := int64(seq) - int64(tail); {
		case dif == 0:
			if q.tail.CompareAndSwap(tail, tail+1) {
				s.data = val
				s.seq.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false // full
		default:
			// tail moved under us, retry
		}
	}
}

// Dequeue removes the oldest element; ok is false when the queue is empty.
func (q *MPMCQueue[T]) Dequeue() (item T, ok bool) {
	for {
		head := q.head.Load()
		s := &q.ring[head&q.mask]
		seq := s.seq.Load()
		switch dif := int64(seq) - int64(head+1); {
		case dif == 0:
			if q.head.CompareAndSwap(head, head+1) {
				item = s.data
				var zero T
				s.data = zero
				s.seq.Store(head + q.mask + 1)
				return item, true
			}
		case dif < 0:
			var zero T
			return zero, false // empty
		default:
			// head moved under us, retry
		}
	}
}

// Cap returns the queue capacity.
func (q *MPMCQueue[T]) Cap() int {
	return len(q.ring)
}
