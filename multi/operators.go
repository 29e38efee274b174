// File: multi/operators.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-to-one and dropping stages. Dropping stages (Filter, FilterMap, Skip)
// transparently re-request one upstream item per drop so downstream demand
// is never consumed by an item that was not delivered.

package multi

import (
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/core/flow"
)

// Map transforms every item 1:1; demand passes through unchanged. A mapper
// error or panic fails the pipeline before the failing item is emitted.
func Map[T, R any](m Multi[T], mapper func(T) (R, error)) Multi[R] {
	return New(func(s api.Subscriber[R]) {
		m.Subscribe(&mapOp[T, R]{down: s, mapper: mapper})
	})
}

type mapOp[T, R any] struct {
	down     api.Subscriber[R]
	mapper   func(T) (R, error)
	upstream api.Subscription
	life     flow.Lifecycle
}

func (o *mapOp[T, R]) OnSubscribe(s api.Subscription) {
	o.upstream = s
	o.life.Activate()
	o.down.OnSubscribe(s)
}

func (o *mapOp[T, R]) OnNext(item T) {
	if o.life.Terminal() {
		return
	}
	r, err := callMapper(o.mapper, item)
	if err != nil {
		if o.life.Fail() {
			o.upstream.Cancel()
			o.down.OnError(err)
		}
		return
	}
	o.down.OnNext(r)
}

func (o *mapOp[T, R]) OnError(err error) {
	if o.life.Fail() {
		o.down.OnError(err)
	}
}

func (o *mapOp[T, R]) OnComplete() {
	if o.life.Complete() {
		o.down.OnComplete()
	}
}

// Filter drops items failing pred without consuming downstream demand.
func (m Multi[T]) Filter(pred func(T) (bool, error)) Multi[T] {
	return FilterMap(m, func(item T) (T, bool, error) {
		ok, err := pred(item)
		return item, ok, err
	})
}

// FilterMap transforms and filters in one stage: mapper returns the mapped
// item and whether it should be emitted at all. This is the explicit Go
// rendition of mappers that skip an input by producing no output.
func FilterMap[T, R any](m Multi[T], mapper func(T) (R, bool, error)) Multi[R] {
	return New(func(s api.Subscriber[R]) {
		m.Subscribe(&filterMapOp[T, R]{down: s, mapper: mapper})
	})
}

type filterMapOp[T, R any] struct {
	down     api.Subscriber[R]
	mapper   func(T) (R, bool, error)
	upstream api.Subscription
	life     flow.Lifecycle
}

func (o *filterMapOp[T, R]) OnSubscribe(s api.Subscription) {
	o.upstream = s
	o.life.Activate()
	o.down.OnSubscribe(s)
}

func (o *filterMapOp[T, R]) OnNext(item T) {
	if o.life.Terminal() {
		return
	}
	r, keep, err := callFilterMapper(o.mapper, item)
	if err != nil {
		if o.life.Fail() {
			o.upstream.Cancel()
			o.down.OnError(err)
		}
		return
	}
	if !keep {
		// Compensate the dropped item so downstream demand stays intact.
		o.upstream.Request(1)
		return
	}
	o.down.OnNext(r)
}

func (o *filterMapOp[T, R]) OnError(err error) {
	if o.life.Fail() {
		o.down.OnError(err)
	}
}

func (o *filterMapOp[T, R]) OnComplete() {
	if o.life.Complete() {
		o.down.OnComplete()
	}
}

func callFilterMapper[T, R any](mapper func(T) (R, bool, error), item T) (r R, keep bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = api.RecoveredPanic(rec)
		}
	}()
	r, keep, err = mapper(item)
	if err != nil {
		err = api.WrapUpstream(err)
	}
	return
}

// Peek invokes fn on every item without altering the stream. A panic in fn
// fails the pipeline.
func (m Multi[T]) Peek(fn func(T)) Multi[T] {
	return Map(m, func(item T) (T, error) {
		fn(item)
		return item, nil
	})
}

// Take emits the first n items then completes, cancelling upstream.
func (m Multi[T]) Take(n int64) Multi[T] {
	return New(func(s api.Subscriber[T]) {
		m.Subscribe(&takeOp[T]{down: s, remaining: n})
	})
}

type takeOp[T any] struct {
	down      api.Subscriber[T]
	remaining int64
	taken     atomic.Int64
	upstream  api.Subscription
	life      flow.Lifecycle
}

func (o *takeOp[T]) OnSubscribe(s api.Subscription) {
	o.upstream = s
	o.life.Activate()
	o.down.OnSubscribe(s)
	if o.remaining <= 0 {
		if o.life.Complete() {
			s.Cancel()
			o.down.OnComplete()
		}
	}
}

func (o *takeOp[T]) OnNext(item T) {
	if o.life.Terminal() {
		return
	}
	taken := o.taken.Add(1)
	if taken < o.remaining {
		o.down.OnNext(item)
		return
	}
	if taken == o.remaining {
		o.down.OnNext(item)
		if o.life.Complete() {
			o.upstream.Cancel()
			o.down.OnComplete()
		}
	}
}

func (o *takeOp[T]) OnError(err error) {
	if o.life.Fail() {
		o.down.OnError(err)
	}
}

func (o *takeOp[T]) OnComplete() {
	if o.life.Complete() {
		o.down.OnComplete()
	}
}

// Skip drops the first n items, re-requesting upstream for each drop.
func (m Multi[T]) Skip(n int64) Multi[T] {
	return New(func(s api.Subscriber[T]) {
		var seen atomic.Int64 // per-subscription cursor
		FilterMap(m, func(item T) (T, bool, error) {
			return item, seen.Add(1) > n, nil
		}).Subscribe(s)
	})
}
