// File: core/flow/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mutex-guarded FIFO used inside drain loops (emitter buffers, merge
// coordinators, EmitOn bridges). Built on eapache/queue: contention is
// bounded by the serialized-drain discipline, so a short critical section
// beats a lock-free structure here.

package flow

import (
	"sync"

	"github.com/eapache/queue"
)

// Queue is an unbounded FIFO safe for concurrent producers and a single
// draining consumer.
type Queue[T any] struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{q: queue.New()}
}

// Push appends v.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.q.Add(v)
	q.mu.Unlock()
}

// Pop removes and returns the oldest element; ok is false when empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.q.Length() == 0 {
		var zero T
		return zero, false
	}
	return q.q.Remove().(T), true
}

// Len returns the current number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Length()
}

// Clear drops all queued elements, e.g. after a cancellation or an
// immediate failure.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	for q.q.Length() > 0 {
		q.q.Remove()
	}
	q.mu.Unlock()
}
