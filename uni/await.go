// File: uni/await.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking consumption of a Uni. This is one of the two suspension points
// of the library (the other is the pull iterator); pipeline stages
// themselves never block.

package uni

import (
	"context"

	"github.com/momentics/hioload-flow/api"
)

// Await subscribes and blocks until the outcome arrives or ctx is done.
// present is false for the empty outcome. When ctx expires or is cancelled
// the underlying subscription is cancelled exactly once and ctx's error is
// returned; a late outcome is then dropped by the subscription wrapper.
func (u Uni[T]) Await(ctx context.Context) (item T, present bool, err error) {
	done := make(chan outcome[T], 1)
	aw := &awaitSubscriber[T]{done: done}
	u.Subscribe(aw)

	select {
	case out := <-done:
		switch out.kind {
		case outcomeItem:
			return out.item, true, nil
		case outcomeEmpty:
			var zero T
			return zero, false, nil
		default:
			var zero T
			return zero, false, out.err
		}
	case <-ctx.Done():
		aw.Cancel()
		var zero T
		return zero, false, ctx.Err()
	}
}

type awaitSubscriber[T any] struct {
	done   chan outcome[T]
	cancel api.Cancellable
}

func (a *awaitSubscriber[T]) OnSubscribe(c api.Cancellable) { a.cancel = c }

func (a *awaitSubscriber[T]) OnItem(item T) {
	a.done <- outcome[T]{kind: outcomeItem, item: item}
}

func (a *awaitSubscriber[T]) OnEmpty() {
	a.done <- outcome[T]{kind: outcomeEmpty}
}

func (a *awaitSubscriber[T]) OnFailure(err error) {
	a.done <- outcome[T]{kind: outcomeFailure, err: err}
}

func (a *awaitSubscriber[T]) Cancel() {
	if a.cancel != nil {
		a.cancel.Cancel()
	}
}
