// File: uni/cache.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Memoizing stage: the upstream is subscribed once, on the first
// subscription, and its outcome is replayed to every later subscriber.
// Subscriber cancellations remove the waiter but deliberately do not cancel
// the upstream computation, so the cached outcome stays usable.

package uni

import (
	"sync"

	"github.com/momentics/hioload-flow/api"
)

type cacheState int

const (
	cacheIdle cacheState = iota
	cachePending
	cacheDone
)

// Memoize returns a caching variant of this Uni: the first computed outcome
// (item, empty or failure) is replayed to every subsequent subscriber.
func (u Uni[T]) Memoize() Uni[T] {
	c := &cachedUni[T]{upstream: u}
	return New(c.subscribe)
}

type cachedUni[T any] struct {
	upstream Uni[T]

	mu      sync.Mutex
	state   cacheState
	out     outcome[T]
	waiters []*cacheWaiter[T]
}

type cacheWaiter[T any] struct {
	sub       Subscriber[T]
	cancelled bool
	parent    *cachedUni[T]
}

// Cancel implements api.Cancellable for one waiting subscriber.
func (w *cacheWaiter[T]) Cancel() {
	w.parent.mu.Lock()
	w.cancelled = true
	w.parent.mu.Unlock()
}

func (c *cachedUni[T]) subscribe(s Subscriber[T]) {
	c.mu.Lock()
	switch c.state {
	case cacheDone:
		out := c.out
		c.mu.Unlock()
		s.OnSubscribe(nopCancel{})
		out.deliver(s)
		return
	case cachePending:
		w := &cacheWaiter[T]{sub: s, parent: c}
		c.waiters = append(c.waiters, w)
		c.mu.Unlock()
		s.OnSubscribe(w)
		return
	default: // cacheIdle
		c.state = cachePending
		w := &cacheWaiter[T]{sub: s, parent: c}
		c.waiters = append(c.waiters, w)
		c.mu.Unlock()
		s.OnSubscribe(w)
		c.upstream.Subscribe(&cacheCollector[T]{parent: c})
		return
	}
}

func (c *cachedUni[T]) resolve(out outcome[T]) {
	c.mu.Lock()
	if c.state == cacheDone {
		c.mu.Unlock()
		return
	}
	c.state = cacheDone
	c.out = out
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		c.mu.Lock()
		skip := w.cancelled
		c.mu.Unlock()
		if !skip {
			out.deliver(w.sub)
		}
	}
}

type cacheCollector[T any] struct {
	parent *cachedUni[T]
}

func (cc *cacheCollector[T]) OnSubscribe(c api.Cancellable) {}

func (cc *cacheCollector[T]) OnItem(item T) {
	cc.parent.resolve(outcome[T]{kind: outcomeItem, item: item})
}

func (cc *cacheCollector[T]) OnEmpty() {
	cc.parent.resolve(outcome[T]{kind: outcomeEmpty})
}

func (cc *cacheCollector[T]) OnFailure(err error) {
	cc.parent.resolve(outcome[T]{kind: outcomeFailure, err: err})
}
