// File: uni/uni.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core Uni type and the serializing subscriber wrapper that enforces the
// at-most-one-terminal contract for every subscription, regardless of how
// the concrete source behaves.

package uni

import (
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/control"
	"github.com/momentics/hioload-flow/core/flow"
)

// Subscriber consumes the single outcome of a Uni.
type Subscriber[T any] interface {
	// OnSubscribe hands over the cancellation handle. Called exactly once,
	// before the outcome.
	OnSubscribe(c api.Cancellable)

	// OnItem delivers the item outcome.
	OnItem(item T)

	// OnEmpty signals completion without an item.
	OnEmpty()

	// OnFailure signals the failure outcome.
	OnFailure(err error)
}

// Uni is an asynchronous computation yielding at most one item or a
// failure. The zero value behaves as an empty Uni.
type Uni[T any] struct {
	source func(s Subscriber[T])
}

// New builds a Uni from a source function. The source must call OnSubscribe
// exactly once, then exactly one of OnItem/OnEmpty/OnFailure; the wrapper
// installed by Subscribe tolerates protocol violations by dropping the
// excess signals.
func New[T any](source func(s Subscriber[T])) Uni[T] {
	return Uni[T]{source: source}
}

// Subscribe binds s to this Uni. Each call triggers an independent
// computation for deferred sources.
func (u Uni[T]) Subscribe(s Subscriber[T]) {
	ser := &serialized[T]{downstream: s}
	if u.source == nil {
		ser.OnSubscribe(nopCancel{})
		ser.OnEmpty()
		return
	}
	u.source(ser)
}

// SubscribeWith subscribes with callbacks. present is false for the empty
// outcome. The returned handle cancels the subscription.
func (u Uni[T]) SubscribeWith(onOutcome func(item T, present bool), onFailure func(err error)) api.Cancellable {
	cb := &callbackSubscriber[T]{onOutcome: onOutcome, onFailure: onFailure}
	u.Subscribe(cb)
	return cb
}

type nopCancel struct{}

func (nopCancel) Cancel() {}

// serialized enforces the subscription contract between an arbitrary source
// and the downstream subscriber: one OnSubscribe, one terminal outcome,
// nothing after cancellation. It is the Cancellable handed downstream.
type serialized[T any] struct {
	downstream Subscriber[T]
	life       flow.Lifecycle
	upstream   atomic.Pointer[cancellableRef]
}

type cancellableRef struct {
	c api.Cancellable
}

func (s *serialized[T]) OnSubscribe(c api.Cancellable) {
	s.upstream.Store(&cancellableRef{c: c})
	if !s.life.Activate() {
		// Cancelled before the source attached, or a duplicate OnSubscribe.
		c.Cancel()
		return
	}
	s.downstream.OnSubscribe(s)
}

func (s *serialized[T]) OnItem(item T) {
	if s.life.Complete() {
		s.downstream.OnItem(item)
	}
}

func (s *serialized[T]) OnEmpty() {
	if s.life.Complete() {
		s.downstream.OnEmpty()
	}
}

func (s *serialized[T]) OnFailure(err error) {
	if s.life.Fail() {
		s.downstream.OnFailure(err)
	} else {
		control.ReportDroppedFailure(err)
	}
}

// Cancel implements api.Cancellable for the downstream side.
func (s *serialized[T]) Cancel() {
	if s.life.Cancel() {
		if ref := s.upstream.Load(); ref != nil {
			ref.c.Cancel()
		}
	}
}

type callbackSubscriber[T any] struct {
	onOutcome func(item T, present bool)
	onFailure func(err error)
	cancel    atomic.Pointer[cancellableRef]
}

func (c *callbackSubscriber[T]) OnSubscribe(h api.Cancellable) {
	c.cancel.Store(&cancellableRef{c: h})
}

func (c *callbackSubscriber[T]) OnItem(item T) {
	if c.onOutcome != nil {
		c.onOutcome(item, true)
	}
}

func (c *callbackSubscriber[T]) OnEmpty() {
	var zero T
	if c.onOutcome != nil {
		c.onOutcome(zero, false)
	}
}

func (c *callbackSubscriber[T]) OnFailure(err error) {
	if c.onFailure != nil {
		c.onFailure(err)
	}
}

func (c *callbackSubscriber[T]) Cancel() {
	if ref := c.cancel.Load(); ref != nil {
		ref.c.Cancel()
	}
}
