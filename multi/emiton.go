// File: multi/emiton.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduling bridge. Upstream signals are queued in arrival order and
// delivered from a drain task running on the executor pool. The gate keeps
// at most one drain task outstanding, so delivery stays serialized even
// though the pool itself guarantees no ordering across tasks.

package multi

import (
	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/core/flow"
)

// EmitOn moves downstream signal delivery (OnNext, OnError, OnComplete) onto
// exec. Request and Cancel still reach upstream on the caller's goroutine.
func (m Multi[T]) EmitOn(exec api.Executor) Multi[T] {
	return New(func(s api.Subscriber[T]) {
		m.Subscribe(&emitOnOp[T]{down: s, exec: exec, queue: flow.NewQueue[signal[T]]()})
	})
}

type emitOnOp[T any] struct {
	down  api.Subscriber[T]
	exec  api.Executor
	queue *flow.Queue[signal[T]]

	gate     flow.Gate
	life     flow.Lifecycle
	upstream api.Subscription
}

func (o *emitOnOp[T]) OnSubscribe(s api.Subscription) {
	o.upstream = s
	o.life.Activate()
	o.down.OnSubscribe(&emitOnSubscription[T]{op: o})
}

func (o *emitOnOp[T]) OnNext(item T) {
	if o.life.Terminal() {
		return
	}
	o.queue.Push(signal[T]{kind: signalItem, item: item})
	o.schedule()
}

func (o *emitOnOp[T]) OnError(err error) {
	o.queue.Push(signal[T]{kind: signalError, err: err})
	o.schedule()
}

func (o *emitOnOp[T]) OnComplete() {
	o.queue.Push(signal[T]{kind: signalComplete})
	o.schedule()
}

// schedule submits one drain task when the caller wins the gate. A closed
// executor fails the pipeline inline since nothing else can drain.
func (o *emitOnOp[T]) schedule() {
	if !o.gate.Offer() {
		return
	}
	if err := o.exec.Submit(o.drainTask); err != nil {
		o.queue.Clear()
		if o.life.Fail() {
			o.upstream.Cancel()
			o.down.OnError(err)
		}
	}
}

func (o *emitOnOp[T]) drainTask() {
	missed := int32(1)
	for {
		o.deliverPending()
		missed = o.gate.Exhaust(missed)
		if missed == 0 {
			return
		}
	}
}

func (o *emitOnOp[T]) deliverPending() {
	for {
		sig, ok := o.queue.Pop()
		if !ok {
			return
		}
		if o.life.Cancelled() {
			o.queue.Clear()
			return
		}
		switch sig.kind {
		case signalItem:
			o.down.OnNext(sig.item)
		case signalComplete:
			if o.life.Complete() {
				o.down.OnComplete()
			}
		case signalError:
			if o.life.Fail() {
				o.down.OnError(sig.err)
			}
		}
	}
}

type emitOnSubscription[T any] struct {
	op *emitOnOp[T]
}

func (s *emitOnSubscription[T]) Request(n int64) {
	s.op.upstream.Request(n)
}

func (s *emitOnSubscription[T]) Cancel() {
	op := s.op
	if op.life.Cancel() {
		op.upstream.Cancel()
		op.queue.Clear()
	}
}
