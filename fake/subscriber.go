// File: fake/subscriber.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Recording subscriber for tests. Captures every signal, counts protocol
// violations instead of panicking, and offers blocking waits on terminal
// conditions.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-flow/api"
)

// Subscriber records every signal it receives. Create with NewSubscriber;
// the zero value requests nothing.
type Subscriber[T any] struct {
	initialDemand int64

	mu        sync.Mutex
	cond      *sync.Cond
	sub       api.Subscription
	items     []T
	err       error
	completed bool

	// Violation counters. A compliant publisher leaves all at zero.
	ExtraOnSubscribe int
	ExtraTerminals   int
	ItemsAfterDone   int
}

// NewSubscriber builds a recording subscriber that requests initialDemand
// upstream as soon as it is subscribed. Use api.Unbounded for everything.
func NewSubscriber[T any](initialDemand int64) *Subscriber[T] {
	s := &Subscriber[T]{initialDemand: initialDemand}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Subscriber[T]) OnSubscribe(sub api.Subscription) {
	s.mu.Lock()
	already := s.sub != nil
	if !already {
		s.sub = sub
	}
	s.mu.Unlock()
	if already {
		s.mu.Lock()
		s.ExtraOnSubscribe++
		s.mu.Unlock()
		return
	}
	if s.initialDemand != 0 {
		sub.Request(s.initialDemand)
	}
}

func (s *Subscriber[T]) OnNext(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.err != nil {
		s.ItemsAfterDone++
		return
	}
	s.items = append(s.items, item)
	s.cond.Broadcast()
}

func (s *Subscriber[T]) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.err != nil {
		s.ExtraTerminals++
		return
	}
	s.err = err
	s.cond.Broadcast()
}

func (s *Subscriber[T]) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || s.err != nil {
		s.ExtraTerminals++
		return
	}
	s.completed = true
	s.cond.Broadcast()
}

// Request forwards demand to the recorded subscription.
func (s *Subscriber[T]) Request(n int64) {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Request(n)
	}
}

// Cancel cancels the recorded subscription.
func (s *Subscriber[T]) Cancel() {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// Items returns a copy of the items received so far.
func (s *Subscriber[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Err returns the recorded failure, nil if none.
func (s *Subscriber[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Completed reports whether OnComplete was received.
func (s *Subscriber[T]) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Terminal reports whether a terminal signal was received.
func (s *Subscriber[T]) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed || s.err != nil
}

// AwaitTerminal blocks until a terminal signal arrives or timeout elapses.
// Reports whether the terminal arrived in time.
func (s *Subscriber[T]) AwaitTerminal(timeout time.Duration) bool {
	return s.await(timeout, func() bool { return s.completed || s.err != nil })
}

// AwaitItems blocks until at least n items arrived or timeout elapses.
func (s *Subscriber[T]) AwaitItems(n int, timeout time.Duration) bool {
	return s.await(timeout, func() bool { return len(s.items) >= n })
}

// await polls pred under the lock; the condition variable wakes it on every
// recorded signal, the timer bounds the wait.
func (s *Subscriber[T]) await(timeout time.Duration, pred func() bool) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for !pred() {
		if time.Now().After(deadline) {
			return false
		}
		s.cond.Wait()
	}
	return true
}
