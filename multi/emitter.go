// File: multi/emitter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Imperative Multi source. External code pushes items and termination
// through an Emitter while the stage reconciles that push flow with
// downstream demand according to the configured overflow strategy. The
// terminal event is delivered only after buffered items drain.

package multi

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/control"
	"github.com/momentics/hioload-flow/core/flow"
)

// OverflowStrategy decides what happens to an emitted item when downstream
// demand is exhausted.
type OverflowStrategy int

const (
	// OverflowBuffer queues items without bound until demand arrives.
	OverflowBuffer OverflowStrategy = iota
	// OverflowDrop silently discards items emitted without demand.
	OverflowDrop
	// OverflowLatest keeps only the most recent undelivered item.
	OverflowLatest
	// OverflowError fails the stream with api.ErrOverflow.
	OverflowError
)

// Emitter is the producer-side handle of a Multi created with Create.
// All methods are safe to call from any goroutine and never panic.
type Emitter[T any] interface {
	// Emit pushes one item. Silently dropped once the stream is terminal
	// or cancelled.
	Emit(item T)

	// Complete terminates the stream after buffered items drain. Only the
	// first terminal call (Complete or Fail) wins.
	Complete()

	// Fail terminates the stream with err after buffered items drain. If a
	// terminal call already won, err goes to the dropped-failure hook.
	Fail(err error)

	// IsCancelled reports whether downstream went away. Advisory.
	IsCancelled() bool

	// OnTermination registers fn to run once on completion, failure or
	// cancellation. Runs immediately if already terminated.
	OnTermination(fn func())
}

// Create builds a Multi driven imperatively through an Emitter. register is
// invoked once per subscriber, after OnSubscribe, and may emit from any
// goroutine.
func Create[T any](register func(e Emitter[T]), strategy OverflowStrategy) Multi[T] {
	return New(func(s api.Subscriber[T]) {
		em := &emitterSubscription[T]{down: s, strategy: strategy, buffer: flow.NewQueue[T]()}
		em.life.Activate()
		s.OnSubscribe(em)
		register(em)
	})
}

const (
	emitOpen int32 = iota
	emitCompleteRequested
	emitFailRequested
)

type emitterSubscription[T any] struct {
	down     api.Subscriber[T]
	strategy OverflowStrategy

	demand flow.Demand
	gate   flow.Gate
	life   flow.Lifecycle
	buffer *flow.Queue[T]
	latest atomic.Pointer[T] // OverflowLatest slot

	terminal atomic.Int32 // emitOpen / emitCompleteRequested / emitFailRequested
	failure  atomic.Pointer[errorRef]

	termMu  sync.Mutex
	termFns []func()
	termRan bool
}

// --- Emitter side ---

func (e *emitterSubscription[T]) Emit(item T) {
	if e.life.Terminal() || e.terminal.Load() != emitOpen {
		return
	}
	switch e.strategy {
	case OverflowDrop:
		if e.demand.Current() <= 0 {
			return
		}
		e.buffer.Push(item)
	case OverflowLatest:
		e.latest.Store(&item)
	case OverflowError:
		if e.demand.Current() <= int64(e.buffer.Len()) {
			e.Fail(api.ErrOverflow)
			return
		}
		e.buffer.Push(item)
	default: // OverflowBuffer
		e.buffer.Push(item)
	}
	e.gate.Drain(e.drain)
}

func (e *emitterSubscription[T]) Complete() {
	if e.terminal.CompareAndSwap(emitOpen, emitCompleteRequested) {
		e.gate.Drain(e.drain)
	}
}

func (e *emitterSubscription[T]) Fail(err error) {
	if e.life.Terminal() {
		control.ReportDroppedFailure(err)
		return
	}
	e.failure.CompareAndSwap(nil, &errorRef{err: err})
	if e.terminal.CompareAndSwap(emitOpen, emitFailRequested) {
		e.gate.Drain(e.drain)
		return
	}
	// A terminal was already requested; report unless this very failure is
	// the one that won.
	ref := e.failure.Load()
	if e.terminal.Load() != emitFailRequested || ref == nil || ref.err != err {
		control.ReportDroppedFailure(err)
	}
}

func (e *emitterSubscription[T]) IsCancelled() bool {
	return e.life.Cancelled()
}

func (e *emitterSubscription[T]) OnTermination(fn func()) {
	e.termMu.Lock()
	if e.termRan {
		e.termMu.Unlock()
		fn()
		return
	}
	e.termFns = append(e.termFns, fn)
	e.termMu.Unlock()
}

// --- Subscription side ---

func (e *emitterSubscription[T]) Request(n int64) {
	if e.life.Terminal() {
		return
	}
	if err := e.demand.Request(n); err != nil {
		if e.life.Fail() {
			e.down.OnError(err)
			e.runTermination()
		}
		return
	}
	e.gate.Drain(e.drain)
}

func (e *emitterSubscription[T]) Cancel() {
	if e.life.Cancel() {
		e.buffer.Clear()
		e.latest.Store(nil)
		e.runTermination()
	}
}

// --- drain ---

func (e *emitterSubscription[T]) drain() {
	for {
		if e.life.Terminal() {
			return
		}
		delivered := false
		if e.demand.Current() > 0 {
			if item, ok := e.popPending(); ok {
				e.demand.Consume(1)
				e.down.OnNext(item)
				delivered = true
			}
		}
		if delivered {
			continue
		}
		if e.pendingLen() == 0 {
			switch e.terminal.Load() {
			case emitCompleteRequested:
				if e.life.Complete() {
					e.down.OnComplete()
					e.runTermination()
				}
			case emitFailRequested:
				if e.life.Fail() {
					e.down.OnError(e.failure.Load().err)
					e.runTermination()
				}
			}
		}
		return
	}
}

func (e *emitterSubscription[T]) popPending() (T, bool) {
	if e.strategy == OverflowLatest {
		if p := e.latest.Swap(nil); p != nil {
			return *p, true
		}
		var zero T
		return zero, false
	}
	return e.buffer.Pop()
}

func (e *emitterSubscription[T]) pendingLen() int {
	if e.strategy == OverflowLatest {
		if e.latest.Load() != nil {
			return 1
		}
		return 0
	}
	return e.buffer.Len()
}

func (e *emitterSubscription[T]) runTermination() {
	e.termMu.Lock()
	fns := e.termFns
	e.termFns = nil
	e.termRan = true
	e.termMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
