// File: uni/create.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Imperative Uni source. The registered function receives an Emitter and
// may resolve the outcome from any goroutine; the first terminal call wins.

package uni

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-flow/control"
)

// Emitter is the producer-side handle of a Uni created with Create.
type Emitter[T any] interface {
	// Complete resolves the Uni with item. No-op if already terminal.
	Complete(item T)

	// CompleteEmpty resolves the Uni without an item. No-op if already
	// terminal.
	CompleteEmpty()

	// Fail resolves the Uni with err. If the Uni is already terminal the
	// failure is handed to the control-plane dropped-failure hook.
	Fail(err error)

	// IsCancelled reports whether the subscriber went away. Advisory: the
	// producer may use it to stop computing early.
	IsCancelled() bool

	// OnTermination registers fn to run once on completion, failure or
	// cancellation. Runs immediately if already terminal.
	OnTermination(fn func())
}

// Create builds a Uni driven imperatively through an Emitter. register is
// invoked once per subscriber, after OnSubscribe.
func Create[T any](register func(e Emitter[T])) Uni[T] {
	return New(func(s Subscriber[T]) {
		em := &uniEmitter[T]{down: s}
		s.OnSubscribe(em)
		register(em)
	})
}

type uniEmitter[T any] struct {
	down      Subscriber[T]
	done      atomic.Bool
	cancelled atomic.Bool

	mu   sync.Mutex
	term []func()
	ran  bool
}

func (e *uniEmitter[T]) Complete(item T) {
	if e.done.CompareAndSwap(false, true) {
		e.down.OnItem(item)
		e.runTermination()
	}
}

func (e *uniEmitter[T]) CompleteEmpty() {
	if e.done.CompareAndSwap(false, true) {
		e.down.OnEmpty()
		e.runTermination()
	}
}

func (e *uniEmitter[T]) Fail(err error) {
	if e.done.CompareAndSwap(false, true) {
		e.down.OnFailure(err)
		e.runTermination()
	} else {
		control.ReportDroppedFailure(err)
	}
}

func (e *uniEmitter[T]) IsCancelled() bool {
	return e.cancelled.Load()
}

// Cancel implements api.Cancellable; invoked by the downstream wrapper.
func (e *uniEmitter[T]) Cancel() {
	e.cancelled.Store(true)
	if e.done.CompareAndSwap(false, true) {
		e.runTermination()
	}
}

func (e *uniEmitter[T]) OnTermination(fn func()) {
	e.mu.Lock()
	if e.ran {
		e.mu.Unlock()
		fn()
		return
	}
	e.term = append(e.term, fn)
	e.mu.Unlock()
}

func (e *uniEmitter[T]) runTermination() {
	e.mu.Lock()
	fns := e.term
	e.term = nil
	e.ran = true
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
