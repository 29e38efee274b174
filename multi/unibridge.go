// File: multi/unibridge.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bridges between the single-outcome and stream worlds: a Uni seen as a
// zero-or-one-item stream, a stream collected into a Uni, and asynchronous
// per-item selection driven by a Uni-returning test.

package multi

import (
	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/core/flow"
	"github.com/momentics/hioload-flow/uni"
)

// FromUni exposes u as a stream: the item outcome becomes one item followed
// by completion, the empty outcome an empty stream, the failure outcome a
// failed stream. The upstream computation starts on the first valid request.
func FromUni[T any](u uni.Uni[T]) Multi[T] {
	return New(func(s api.Subscriber[T]) {
		uni.ToPublisher(u).Subscribe(s)
	})
}

// Collect accumulates every item of m into a slice, delivered as the item
// outcome of the returned Uni when m completes. An empty stream yields an
// empty (non-nil) slice, not the empty outcome.
func Collect[T any](m Multi[T]) uni.Uni[[]T] {
	return uni.New(func(s uni.Subscriber[[]T]) {
		m.Subscribe(&collectOp[T]{down: s, items: []T{}})
	})
}

type collectOp[T any] struct {
	down  uni.Subscriber[[]T]
	items []T
	life  flow.Lifecycle
}

func (o *collectOp[T]) OnSubscribe(s api.Subscription) {
	o.life.Activate()
	o.down.OnSubscribe(&collectCancel[T]{op: o, upstream: s})
	s.Request(api.Unbounded)
}

func (o *collectOp[T]) OnNext(item T) {
	if o.life.Terminal() {
		return
	}
	o.items = append(o.items, item)
}

func (o *collectOp[T]) OnError(err error) {
	if o.life.Fail() {
		o.items = nil
		o.down.OnFailure(err)
	}
}

func (o *collectOp[T]) OnComplete() {
	if o.life.Complete() {
		o.down.OnItem(o.items)
	}
}

type collectCancel[T any] struct {
	op       *collectOp[T]
	upstream api.Subscription
}

func (c *collectCancel[T]) Cancel() {
	if c.op.life.Cancel() {
		c.upstream.Cancel()
	}
}

// FilterWith keeps the items for which test resolves to true. Tests run one
// at a time in item order, so a slow test for an early item delays later
// ones. A test failure fails the stream; an empty test outcome drops the
// item, like a false verdict.
func FilterWith[T any](m Multi[T], test func(T) uni.Uni[bool]) Multi[T] {
	return ConcatMap(m, func(item T) Multi[T] {
		verdict := uni.FlatMap(test(item), func(ok bool) uni.Uni[T] {
			if ok {
				return uni.Of(item)
			}
			return uni.Empty[T]()
		})
		return FromUni(verdict)
	})
}
