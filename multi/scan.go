// File: multi/scan.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Folding stages emitting every intermediate accumulator value. The
// accumulator is single-owner state, touched only on the upstream emission
// path, which the protocol already serializes.

package multi

import (
	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/core/flow"
)

// Scan folds every upstream item into an accumulator seeded by seed and
// emits the accumulator after each fold. seed runs once per subscription.
func Scan[T, S any](m Multi[T], seed func() S, scanner func(S, T) (S, error)) Multi[S] {
	return New(func(s api.Subscriber[S]) {
		m.Subscribe(&scanOp[T, S]{down: s, seed: seed, scanner: scanner})
	})
}

// ScanFirst folds items of the same type, seeding the accumulator with the
// first upstream item, which is emitted as-is.
func ScanFirst[T any](m Multi[T], scanner func(T, T) (T, error)) Multi[T] {
	return New(func(s api.Subscriber[T]) {
		m.Subscribe(&scanOp[T, T]{down: s, scanner: scanner, seedFromFirst: true})
	})
}

type scanOp[T, S any] struct {
	down          api.Subscriber[S]
	seed          func() S
	scanner       func(S, T) (S, error)
	seedFromFirst bool

	acc      S
	seeded   bool
	upstream api.Subscription
	life     flow.Lifecycle
}

func (o *scanOp[T, S]) OnSubscribe(s api.Subscription) {
	o.upstream = s
	o.life.Activate()
	// The accumulator must be in place before the subscription is handed
	// down: a downstream requesting synchronously from OnSubscribe drives
	// items through OnNext right away.
	if o.seed != nil {
		acc, err := callSeed(o.seed)
		if err != nil {
			if o.life.Fail() {
				s.Cancel()
				o.down.OnSubscribe(nopSubscription{})
				o.down.OnError(err)
			}
			return
		}
		o.acc = acc
		o.seeded = true
	}
	o.down.OnSubscribe(s)
}

func (o *scanOp[T, S]) OnNext(item T) {
	if o.life.Terminal() {
		return
	}
	if o.seedFromFirst && !o.seeded {
		// T == S in this mode by construction (ScanFirst).
		o.acc = any(item).(S)
		o.seeded = true
		o.down.OnNext(o.acc)
		return
	}
	acc, err := callScanner(o.scanner, o.acc, item)
	if err != nil {
		o.failWith(err)
		return
	}
	o.acc = acc
	o.down.OnNext(o.acc)
}

func (o *scanOp[T, S]) OnError(err error) {
	if o.life.Fail() {
		o.down.OnError(err)
	}
}

func (o *scanOp[T, S]) OnComplete() {
	if o.life.Complete() {
		o.down.OnComplete()
	}
}

func (o *scanOp[T, S]) failWith(err error) {
	if o.life.Fail() {
		o.upstream.Cancel()
		o.down.OnError(err)
	}
}

func callSeed[S any](seed func() S) (s S, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = api.RecoveredPanic(rec)
		}
	}()
	s = seed()
	return
}

func callScanner[T, S any](scanner func(S, T) (S, error), acc S, item T) (s S, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = api.RecoveredPanic(rec)
		}
	}()
	s, err = scanner(acc, item)
	if err != nil {
		err = api.WrapUpstream(err)
	}
	return
}
