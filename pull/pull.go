// File: pull/pull.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pull-side adapter over the demand-based protocol. An Iterator subscribes
// to a publisher, keeps a bounded prefetch window outstanding, and hands
// items to the caller one blocking Next at a time. Demand is replenished one
// item per consumed item, so the publisher can never run ahead of the
// consumer by more than the prefetch window.

package pull

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
)

// Option configures an Iterator.
type Option func(*config)

type config struct {
	prefetch      int64
	overflowError bool
}

// WithPrefetch sets how many items are requested ahead of consumption.
// Values below one are ignored; the default is one.
func WithPrefetch(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithOverflowError makes the iterator fail with api.ErrOverflow when the
// publisher delivers more items than were requested, instead of blocking the
// producing goroutine until the consumer catches up.
func WithOverflowError() Option {
	return func(c *config) { c.overflowError = true }
}

// Iterator consumes a publisher cooperatively. Next is meant for a single
// consuming goroutine; Close may be called from any goroutine.
type Iterator[T any] struct {
	cfg   config
	items chan T

	// Terminal signal path, kept off the item channel so a terminal can
	// always land even when the item buffer is full.
	termErr  error
	termOnce sync.Once
	termCh   chan struct{}

	upstream   atomic.Pointer[subscriptionRef]
	closeOnce  sync.Once
	done       chan struct{}
	overflowed atomic.Bool
	finished   bool // consumer-side: terminal consumed
}

type subscriptionRef struct {
	s api.Subscription
}

// From subscribes to p and returns an iterator over its items. The
// subscription is issued immediately; the first prefetch requests go out
// before From returns.
func From[T any](p api.Publisher[T], opts ...Option) *Iterator[T] {
	cfg := config{prefetch: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	it := &Iterator[T]{
		cfg: cfg,
		// One slot of slack above the prefetch window keeps a compliant
		// producer from ever parking on delivery.
		items:  make(chan T, cfg.prefetch+1),
		termCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.Subscribe(&pullSubscriber[T]{it: it})
	return it
}

// Next blocks until the next item, the end of the stream, or ctx expiry.
// ok is false once the stream is finished; err carries the stream failure or
// the context error. A context error closes the iterator. Buffered items are
// delivered before a pending terminal.
func (it *Iterator[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	var zero T
	if it.finished {
		return zero, false, it.termErr
	}
	select {
	case item = <-it.items:
		it.replenish()
		return item, true, nil
	case <-it.termCh:
		// Drain what arrived ahead of the terminal.
		select {
		case item = <-it.items:
			return item, true, nil
		default:
			it.finished = true
			return zero, false, it.termErr
		}
	case <-ctx.Done():
		it.Close()
		return zero, false, ctx.Err()
	case <-it.done:
		return zero, false, it.termErr
	}
}

// Close cancels the upstream subscription and releases any producer blocked
// on delivery. Idempotent.
func (it *Iterator[T]) Close() {
	it.closeOnce.Do(func() {
		close(it.done)
		if s := it.loadUpstream(); s != nil {
			s.Cancel()
		}
	})
}

func (it *Iterator[T]) replenish() {
	if s := it.loadUpstream(); s != nil {
		s.Request(1)
	}
}

func (it *Iterator[T]) loadUpstream() api.Subscription {
	if ref := it.upstream.Load(); ref != nil {
		return ref.s
	}
	return nil
}

func (it *Iterator[T]) closed() bool {
	select {
	case <-it.done:
		return true
	default:
		return false
	}
}

// terminate records the terminal outcome once and wakes the consumer.
func (it *Iterator[T]) terminate(err error) {
	it.termOnce.Do(func() {
		it.termErr = err
		close(it.termCh)
	})
}

type pullSubscriber[T any] struct {
	it *Iterator[T]
}

func (p *pullSubscriber[T]) OnSubscribe(s api.Subscription) {
	it := p.it
	it.upstream.Store(&subscriptionRef{s: s})
	if it.closed() {
		s.Cancel()
		return
	}
	s.Request(it.cfg.prefetch)
}

func (p *pullSubscriber[T]) OnNext(item T) {
	it := p.it
	if it.cfg.overflowError {
		if it.overflowed.Load() {
			return
		}
		select {
		case it.items <- item:
		default:
			// The producer outran the demand window.
			if it.overflowed.CompareAndSwap(false, true) {
				if s := it.loadUpstream(); s != nil {
					s.Cancel()
				}
				it.terminate(api.ErrOverflow)
			}
		}
		return
	}
	// Blocking mode: park until the consumer makes room or goes away.
	select {
	case it.items <- item:
	case <-it.done:
	}
}

func (p *pullSubscriber[T]) OnError(err error) { p.it.terminate(err) }

func (p *pullSubscriber[T]) OnComplete() { p.it.terminate(nil) }
