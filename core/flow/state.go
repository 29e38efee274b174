// File: core/flow/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-subscriber lifecycle state machine. All transitions are CAS-based and
// report whether the caller won the transition, so that terminal signals are
// delivered exactly once without locks.

package flow

import "sync/atomic"

// State enumerates the lifecycle of one subscription.
type State int32

const (
	StateUnsubscribed State = iota
	StateActive
	StateCompleted
	StateFailed
	StateCancelled
)

// Lifecycle tracks the state of one subscription. The zero value starts in
// StateUnsubscribed.
type Lifecycle struct {
	state atomic.Int32
}

// Activate moves Unsubscribed -> Active. Returns false if the subscription
// was already activated or is terminal; single-use sources turn that into
// api.ErrIllegalState.
func (l *Lifecycle) Activate() bool {
	return l.state.CompareAndSwap(int32(StateUnsubscribed), int32(StateActive))
}

// Complete moves Active -> Completed. Returns true when the caller owns the
// terminal event.
func (l *Lifecycle) Complete() bool {
	return l.state.CompareAndSwap(int32(StateActive), int32(StateCompleted))
}

// Fail moves Active -> Failed. Returns true when the caller owns the
// terminal event.
func (l *Lifecycle) Fail() bool {
	return l.state.CompareAndSwap(int32(StateActive), int32(StateFailed))
}

// Cancel moves Unsubscribed/Active -> Cancelled. Idempotent: only the first
// caller gets true. An emission already in transit on another goroutine when
// the cancellation lands may still be observed downstream; no new emission
// starts once the cancelled state is visible.
func (l *Lifecycle) Cancel() bool {
	for {
		cur := l.state.Load()
		if State(cur) != StateUnsubscribed && State(cur) != StateActive {
			return false
		}
		if l.state.CompareAndSwap(cur, int32(StateCancelled)) {
			return true
		}
	}
}

// Current returns the state at this instant.
func (l *Lifecycle) Current() State {
	return State(l.state.Load())
}

// Terminal reports whether a terminal state has been reached.
func (l *Lifecycle) Terminal() bool {
	s := l.Current()
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Cancelled reports whether the subscription was cancelled by the consumer.
func (l *Lifecycle) Cancelled() bool {
	return l.Current() == StateCancelled
}
