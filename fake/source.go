// File: fake/source.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scripted publisher for tests. Emits a fixed item sequence strictly within
// requested demand and counts the demand and cancellation traffic it sees.

package fake

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
)

// Source is a scripted api.Publisher emitting a fixed sequence of items
// followed by completion (or a scripted failure). It supports a single
// subscriber per instance so its counters stay attributable.
type Source[T any] struct {
	items   []T
	failure error
	never   bool

	requested atomic.Int64
	cancels   atomic.Int64
}

// NewSource builds a source emitting items then completing.
func NewSource[T any](items ...T) *Source[T] {
	return &Source[T]{items: items}
}

// NewFailingSource builds a source emitting items then failing with err.
func NewFailingSource[T any](err error, items ...T) *Source[T] {
	return &Source[T]{items: items, failure: err}
}

// NewNeverSource builds a source that subscribes but never emits anything,
// for cancellation and timeout tests.
func NewNeverSource[T any]() *Source[T] {
	return &Source[T]{never: true}
}

// RequestedTotal returns the sum of all demand received.
func (f *Source[T]) RequestedTotal() int64 { return f.requested.Load() }

// Cancels returns how many times Cancel was called.
func (f *Source[T]) Cancels() int64 { return f.cancels.Load() }

func (f *Source[T]) Subscribe(s api.Subscriber[T]) {
	sub := &sourceSubscription[T]{src: f, down: s}
	s.OnSubscribe(sub)
}

type sourceSubscription[T any] struct {
	src  *Source[T]
	down api.Subscriber[T]

	mu        sync.Mutex
	draining  bool
	pending   int64
	pos       int
	done      bool
	cancelled bool
}

func (s *sourceSubscription[T]) Request(n int64) {
	s.src.requested.Add(n)
	if n <= 0 {
		s.mu.Lock()
		done := s.done || s.cancelled
		s.done = true
		s.mu.Unlock()
		if !done {
			s.down.OnError(api.ErrIllegalDemand)
		}
		return
	}
	s.mu.Lock()
	s.pending += n
	if s.pending < 0 || s.pending > api.Unbounded-n {
		s.pending = api.Unbounded
	}
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()
	s.drain()
}

func (s *sourceSubscription[T]) Cancel() {
	s.src.cancels.Add(1)
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *sourceSubscription[T]) drain() {
	for {
		s.mu.Lock()
		if s.done || s.cancelled || s.src.never {
			s.draining = false
			s.mu.Unlock()
			return
		}
		if s.pos >= len(s.src.items) {
			s.done = true
			s.draining = false
			failure := s.src.failure
			s.mu.Unlock()
			if failure != nil {
				s.down.OnError(failure)
			} else {
				s.down.OnComplete()
			}
			return
		}
		if s.pending == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		item := s.src.items[s.pos]
		s.pos++
		s.pending--
		s.mu.Unlock()
		s.down.OnNext(item)
	}
}
