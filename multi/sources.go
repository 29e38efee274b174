// File: multi/sources.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Demand-driven sources. All of them share one generator subscription that
// serializes emission through a drain gate, so reentrant and concurrent
// Request calls cannot interleave or over-deliver.

package multi

import (
	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/core/flow"
)

// Of builds a stream replaying items and completing.
func Of[T any](items ...T) Multi[T] {
	return FromSlice(items)
}

// FromSlice builds a stream replaying the slice and completing. The slice
// must not be mutated afterwards.
func FromSlice[T any](items []T) Multi[T] {
	return New(func(s api.Subscriber[T]) {
		i := 0
		subscribeGenerator(s, func() (T, bool) {
			if i >= len(items) {
				var zero T
				return zero, false
			}
			v := items[i]
			i++
			return v, true
		})
	})
}

// Range builds a stream of count integers starting at from.
func Range(from, count int) Multi[int] {
	return New(func(s api.Subscriber[int]) {
		i := 0
		subscribeGenerator(s, func() (int, bool) {
			if i >= count {
				return 0, false
			}
			v := from + i
			i++
			return v, true
		})
	})
}

// Empty builds a stream completing immediately, without items.
func Empty[T any]() Multi[T] {
	return New(func(s api.Subscriber[T]) {
		sub := &generatorSubscription[T]{down: s}
		sub.life.Activate()
		s.OnSubscribe(sub)
		if sub.life.Complete() {
			s.OnComplete()
		}
	})
}

// Failure builds a stream failing immediately with err.
func Failure[T any](err error) Multi[T] {
	return New(func(s api.Subscriber[T]) {
		sub := &generatorSubscription[T]{down: s}
		sub.life.Activate()
		s.OnSubscribe(sub)
		if sub.life.Fail() {
			s.OnError(err)
		}
	})
}

// subscribeGenerator wires a pull generator as the subscription of s.
// next is only ever invoked inside the serialized drain.
func subscribeGenerator[T any](s api.Subscriber[T], next func() (T, bool)) {
	sub := &generatorSubscription[T]{down: s, next: next}
	sub.life.Activate()
	s.OnSubscribe(sub)
}

type generatorSubscription[T any] struct {
	down   api.Subscriber[T]
	next   func() (T, bool)
	demand flow.Demand
	gate   flow.Gate
	life   flow.Lifecycle
}

func (g *generatorSubscription[T]) Request(n int64) {
	if g.life.Terminal() {
		return
	}
	if err := g.demand.Request(n); err != nil {
		if g.life.Fail() {
			g.down.OnError(err)
		}
		return
	}
	g.gate.Drain(g.drain)
}

func (g *generatorSubscription[T]) Cancel() {
	g.life.Cancel()
}

func (g *generatorSubscription[T]) drain() {
	for {
		if g.life.Terminal() {
			return
		}
		if g.next == nil {
			if g.life.Complete() {
				g.down.OnComplete()
			}
			return
		}
		if g.demand.Current() <= 0 {
			return
		}
		item, ok := g.next()
		if !ok {
			if g.life.Complete() {
				g.down.OnComplete()
			}
			return
		}
		g.demand.Consume(1)
		g.down.OnNext(item)
	}
}
