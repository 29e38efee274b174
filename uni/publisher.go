// File: uni/publisher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adapter from a Uni to the demand-based publish/subscribe protocol. The
// upstream Uni is subscribed lazily, on the first valid request; the single
// item is followed by completion, absence becomes an empty stream, failure
// an immediate failure.

package uni

import (
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
)

// ToPublisher exposes u through the publish/subscribe protocol. Each
// subscriber gets an independent upstream subscription.
func ToPublisher[T any](u Uni[T]) api.Publisher[T] {
	return publisherAdapter[T]{upstream: u}
}

type publisherAdapter[T any] struct {
	upstream Uni[T]
}

func (p publisherAdapter[T]) Subscribe(s api.Subscriber[T]) {
	sub := &publisherSubscription[T]{down: s, upstream: p.upstream}
	s.OnSubscribe(sub)
}

const (
	pubIdle int32 = iota // waiting for the first request
	pubFired             // upstream subscribed, outcome pending
	pubDone              // terminal signal sent
	pubCancelled
)

type publisherSubscription[T any] struct {
	down     api.Subscriber[T]
	upstream Uni[T]
	state    atomic.Int32
	cancel   atomic.Pointer[cancellableRef]
}

// Request triggers the upstream computation on its first valid call. The
// single item satisfies any demand >= 1, so the amount is not tracked
// beyond validation.
func (p *publisherSubscription[T]) Request(n int64) {
	if n <= 0 {
		p.terminate(func() { p.down.OnError(api.ErrIllegalDemand) })
		return
	}
	if p.state.CompareAndSwap(pubIdle, pubFired) {
		p.upstream.Subscribe(&publisherCollector[T]{parent: p})
	}
}

func (p *publisherSubscription[T]) Cancel() {
	for {
		cur := p.state.Load()
		if cur == pubDone || cur == pubCancelled {
			return
		}
		if p.state.CompareAndSwap(cur, pubCancelled) {
			if ref := p.cancel.Load(); ref != nil {
				ref.c.Cancel()
			}
			return
		}
	}
}

// terminate moves to pubDone from any non-terminal state and runs signal
// once. Cancels a pending upstream computation if one was started.
func (p *publisherSubscription[T]) terminate(signal func()) {
	for {
		cur := p.state.Load()
		if cur == pubDone || cur == pubCancelled {
			return
		}
		if p.state.CompareAndSwap(cur, pubDone) {
			if cur == pubFired {
				if ref := p.cancel.Load(); ref != nil {
					ref.c.Cancel()
				}
			}
			signal()
			return
		}
	}
}

type publisherCollector[T any] struct {
	parent *publisherSubscription[T]
}

func (c *publisherCollector[T]) OnSubscribe(h api.Cancellable) {
	c.parent.cancel.Store(&cancellableRef{c: h})
	if c.parent.state.Load() == pubCancelled {
		h.Cancel()
	}
}

func (c *publisherCollector[T]) OnItem(item T) {
	if c.parent.state.CompareAndSwap(pubFired, pubDone) {
		c.parent.down.OnNext(item)
		c.parent.down.OnComplete()
	}
}

func (c *publisherCollector[T]) OnEmpty() {
	if c.parent.state.CompareAndSwap(pubFired, pubDone) {
		c.parent.down.OnComplete()
	}
}

func (c *publisherCollector[T]) OnFailure(err error) {
	if c.parent.state.CompareAndSwap(pubFired, pubDone) {
		c.parent.down.OnError(err)
	}
}
