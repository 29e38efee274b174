// File: uni/builders.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Uni sources. Eager sources capture their outcome at assembly time;
// deferred sources recompute it for every subscriber.

package uni

import (
	"fmt"

	"github.com/momentics/hioload-flow/api"
)

// Of builds a Uni emitting item to every subscriber.
func Of[T any](item T) Uni[T] {
	return New(func(s Subscriber[T]) {
		s.OnSubscribe(nopCancel{})
		s.OnItem(item)
	})
}

// Empty builds a Uni completing without an item.
func Empty[T any]() Uni[T] {
	return New(func(s Subscriber[T]) {
		s.OnSubscribe(nopCancel{})
		s.OnEmpty()
	})
}

// Failure builds a Uni failing with err.
func Failure[T any](err error) Uni[T] {
	return New(func(s Subscriber[T]) {
		s.OnSubscribe(nopCancel{})
		s.OnFailure(err)
	})
}

// FromSupplier builds a deferred Uni invoking supplier once per subscriber.
// A supplier error or panic surfaces as an UpstreamError failure.
func FromSupplier[T any](supplier func() (T, error)) Uni[T] {
	return New(func(s Subscriber[T]) {
		s.OnSubscribe(nopCancel{})
		item, err := callSupplier(supplier)
		if err != nil {
			s.OnFailure(err)
			return
		}
		s.OnItem(item)
	})
}

// Deferred builds a Uni that asks factory for a fresh Uni on every
// subscription and subscribes to it.
func Deferred[T any](factory func() Uni[T]) Uni[T] {
	return New(func(s Subscriber[T]) {
		u, err := callFactory(factory)
		if err != nil {
			s.OnSubscribe(nopCancel{})
			s.OnFailure(err)
			return
		}
		u.source(s)
	})
}

func callSupplier[T any](supplier func() (T, error)) (item T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = api.RecoveredPanic(r)
		}
	}()
	item, err = supplier()
	if err != nil {
		err = api.WrapUpstream(err)
	}
	return
}

func callFactory[T any](factory func() Uni[T]) (u Uni[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = api.RecoveredPanic(r)
		}
	}()
	u = factory()
	if u.source == nil {
		err = fmt.Errorf("%w: deferred factory returned a zero Uni", api.ErrIllegalState)
	}
	return
}
