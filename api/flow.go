// File: api/flow.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Publish/subscribe protocol with demand signaling. The contract follows the
// reactive-streams rules: a Subscriber receives exactly one OnSubscribe,
// then zero or more OnNext calls never exceeding the demand it requested,
// then at most one terminal OnError or OnComplete. No signal follows a
// terminal event or an observed cancellation.

package api

// Publisher is a provider of a potentially unbounded number of sequenced
// items, publishing them according to the demand received from its
// subscribers.
//
// Subscribe acts as a factory: each call binds an independent subscription
// unless the concrete source documents single-use semantics, in which case a
// second subscription is terminated with ErrIllegalState.
type Publisher[T any] interface {
	Subscribe(s Subscriber[T])
}

// Subscriber consumes items from a Publisher. All methods are invoked
// serially with respect to each other for a given subscription.
type Subscriber[T any] interface {
	// OnSubscribe hands over the Subscription used to request items and to
	// cancel. Called exactly once, before any other signal.
	OnSubscribe(s Subscription)

	// OnNext delivers one item. Never called more times than the total
	// demand requested so far.
	OnNext(item T)

	// OnError signals the terminal failure of the stream.
	OnError(err error)

	// OnComplete signals successful termination of the stream.
	OnComplete()
}

// Subscription is the one-to-one lifecycle binding between a Subscriber and
// a Publisher. Both methods may be called from any goroutine.
type Subscription interface {
	// Request adds n to the outstanding demand. Requesting n <= 0 terminates
	// the subscription with OnError(ErrIllegalDemand); it never panics.
	// Demand saturates at Unbounded.
	Request(n int64)

	// Cancel asks the publisher to stop emitting. Idempotent. An item that
	// was already irrevocably in transit when the cancellation was observed
	// may still be delivered; no new emission starts afterwards.
	Cancel()
}

// Cancellable is the subscription handle of single-result pipelines, which
// carry no demand protocol.
type Cancellable interface {
	Cancel()
}

// Unbounded is the saturation sentinel for demand counters. Requesting it
// disables backpressure accounting for the subscription.
const Unbounded = int64(1<<63 - 1)
