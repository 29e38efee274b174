// File: uni/operators.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transformation stages. Each stage subscribes upstream on behalf of its
// downstream subscriber and keeps the cancellation chain intact.

package uni

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
)

// Map transforms the item outcome with mapper. Empty and failure outcomes
// pass through. A mapper error or panic fails the pipeline as an
// UpstreamError.
func Map[T, R any](upstream Uni[T], mapper func(T) (R, error)) Uni[R] {
	return New(func(s Subscriber[R]) {
		upstream.Subscribe(&mapStage[T, R]{down: s, mapper: mapper})
	})
}

type mapStage[T, R any] struct {
	down   Subscriber[R]
	mapper func(T) (R, error)
}

func (m *mapStage[T, R]) OnSubscribe(c api.Cancellable) { m.down.OnSubscribe(c) }

func (m *mapStage[T, R]) OnItem(item T) {
	r, err := callMapper(m.mapper, item)
	if err != nil {
		m.down.OnFailure(err)
		return
	}
	m.down.OnItem(r)
}

func (m *mapStage[T, R]) OnEmpty()            { m.down.OnEmpty() }
func (m *mapStage[T, R]) OnFailure(err error) { m.down.OnFailure(err) }

// FlatMap chains a dependent Uni: for an item outcome, mapper produces the
// inner Uni whose outcome is forwarded downstream. Empty and failure pass
// through without invoking mapper. Cancellation reaches whichever
// subscription is live at that moment.
func FlatMap[T, R any](upstream Uni[T], mapper func(T) Uni[R]) Uni[R] {
	return New(func(s Subscriber[R]) {
		st := &flatMapStage[T, R]{down: s, mapper: mapper}
		upstream.Subscribe(st)
	})
}

type flatMapStage[T, R any] struct {
	down      Subscriber[R]
	mapper    func(T) Uni[R]
	current   atomic.Pointer[cancellableRef]
	cancelled atomic.Bool
}

func (f *flatMapStage[T, R]) OnSubscribe(c api.Cancellable) {
	f.current.Store(&cancellableRef{c: c})
	f.down.OnSubscribe(f)
}

func (f *flatMapStage[T, R]) OnItem(item T) {
	inner, err := callUniMapper(f.mapper, item)
	if err != nil {
		f.down.OnFailure(err)
		return
	}
	if f.cancelled.Load() {
		return
	}
	inner.Subscribe(&flatMapInner[T, R]{parent: f})
}

func (f *flatMapStage[T, R]) OnEmpty()            { f.down.OnEmpty() }
func (f *flatMapStage[T, R]) OnFailure(err error) { f.down.OnFailure(err) }

// Cancel implements api.Cancellable for the downstream side, targeting the
// live subscription (outer first, inner once it exists).
func (f *flatMapStage[T, R]) Cancel() {
	f.cancelled.Store(true)
	if ref := f.current.Load(); ref != nil {
		ref.c.Cancel()
	}
}

type flatMapInner[T, R any] struct {
	parent *flatMapStage[T, R]
}

func (i *flatMapInner[T, R]) OnSubscribe(c api.Cancellable) {
	i.parent.current.Store(&cancellableRef{c: c})
	if i.parent.cancelled.Load() {
		c.Cancel()
	}
}

func (i *flatMapInner[T, R]) OnItem(item R)        { i.parent.down.OnItem(item) }
func (i *flatMapInner[T, R]) OnEmpty()             { i.parent.down.OnEmpty() }
func (i *flatMapInner[T, R]) OnFailure(err error)  { i.parent.down.OnFailure(err) }

// EmitOn re-homes the outcome delivery onto exec, decoupling the producing
// goroutine from the consuming one. The subscription signal itself stays on
// the caller's goroutine.
func (u Uni[T]) EmitOn(exec api.Executor) Uni[T] {
	return New(func(s Subscriber[T]) {
		u.Subscribe(&emitOnStage[T]{down: s, exec: exec})
	})
}

type emitOnStage[T any] struct {
	down Subscriber[T]
	exec api.Executor
}

func (e *emitOnStage[T]) OnSubscribe(c api.Cancellable) { e.down.OnSubscribe(c) }

func (e *emitOnStage[T]) OnItem(item T) {
	if err := e.exec.Submit(func() { e.down.OnItem(item) }); err != nil {
		e.down.OnFailure(err)
	}
}

func (e *emitOnStage[T]) OnEmpty() {
	if err := e.exec.Submit(e.down.OnEmpty); err != nil {
		e.down.OnFailure(err)
	}
}

func (e *emitOnStage[T]) OnFailure(failure error) {
	if err := e.exec.Submit(func() { e.down.OnFailure(failure) }); err != nil {
		e.down.OnFailure(err)
	}
}

func callMapper[T, R any](mapper func(T) (R, error), item T) (r R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = api.RecoveredPanic(rec)
		}
	}()
	r, err = mapper(item)
	if err != nil {
		err = api.WrapUpstream(err)
	}
	return
}

func callUniMapper[T, R any](mapper func(T) Uni[R], item T) (u Uni[R], err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = api.RecoveredPanic(rec)
		}
	}()
	u = mapper(item)
	if u.source == nil {
		err = fmt.Errorf("%w: flat-map mapper returned a zero Uni", api.ErrIllegalState)
	}
	return
}
