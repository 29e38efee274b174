// File: multi/subscribe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package multi

import (
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
)

// SubscribeWith subscribes with callbacks and unbounded demand. Nil
// callbacks are skipped. The returned subscription only serves cancellation;
// demand is already saturated.
func (m Multi[T]) SubscribeWith(onNext func(T), onError func(error), onComplete func()) api.Subscription {
	cb := &callbackSubscriber[T]{onNext: onNext, onError: onError, onComplete: onComplete}
	m.Subscribe(cb)
	return cb
}

type callbackSubscriber[T any] struct {
	onNext     func(T)
	onError    func(error)
	onComplete func()
	upstream   subscriptionSlot
	done       atomic.Bool
}

func (c *callbackSubscriber[T]) OnSubscribe(s api.Subscription) {
	c.upstream.store(s)
	s.Request(api.Unbounded)
}

func (c *callbackSubscriber[T]) OnNext(item T) {
	if c.done.Load() {
		return
	}
	if c.onNext != nil {
		c.onNext(item)
	}
}

func (c *callbackSubscriber[T]) OnError(err error) {
	if c.done.CompareAndSwap(false, true) && c.onError != nil {
		c.onError(err)
	}
}

func (c *callbackSubscriber[T]) OnComplete() {
	if c.done.CompareAndSwap(false, true) && c.onComplete != nil {
		c.onComplete()
	}
}

// Request is a no-op; demand was saturated at subscription time.
func (c *callbackSubscriber[T]) Request(int64) {}

func (c *callbackSubscriber[T]) Cancel() {
	if c.done.CompareAndSwap(false, true) {
		if s := c.upstream.load(); s != nil {
			s.Cancel()
		}
	}
}
