// File: multi/multi.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package multi

import (
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
)

// Multi is an asynchronous stream of zero or more ordered items followed by
// exactly one terminal event. It implements api.Publisher. The zero value
// behaves as an empty stream.
type Multi[T any] struct {
	source func(s api.Subscriber[T])
}

// New builds a Multi from a source function invoked once per subscriber.
// The source owns protocol compliance for the subscription it creates.
func New[T any](source func(s api.Subscriber[T])) Multi[T] {
	return Multi[T]{source: source}
}

// Subscribe implements api.Publisher.
func (m Multi[T]) Subscribe(s api.Subscriber[T]) {
	if m.source == nil {
		s.OnSubscribe(nopSubscription{})
		s.OnComplete()
		return
	}
	m.source(s)
}

type nopSubscription struct{}

func (nopSubscription) Request(int64) {}
func (nopSubscription) Cancel()       {}

// subscriptionRef is an atomically swappable subscription holder shared by
// stages that change their live upstream over time.
type subscriptionRef struct {
	s api.Subscription
}

type subscriptionSlot struct {
	p atomic.Pointer[subscriptionRef]
}

func (s *subscriptionSlot) store(sub api.Subscription) { s.p.Store(&subscriptionRef{s: sub}) }

func (s *subscriptionSlot) load() api.Subscription {
	if ref := s.p.Load(); ref != nil {
		return ref.s
	}
	return nil
}
