// File: multi/flatten.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Flattening coordinator shared by merge and concatenate modes. Every
// upstream item is mapped to an inner stream; inner items funnel through a
// shared FIFO and are delivered by the serialized drain, so per-inner order
// is preserved and downstream demand is never exceeded. Concatenation is
// merge with a concurrency window of one: a single live inner at a time
// keeps upstream-item order end to end.

package multi

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
	"github.com/momentics/hioload-flow/core/flow"
)

const defaultFlattenConcurrency = 4

// FlattenOption configures MergeMap and ConcatMap stages.
type FlattenOption func(*flattenConfig)

type flattenConfig struct {
	concurrency  int
	delayFailure bool
}

// WithConcurrency bounds how many inner streams a merge subscribes to
// simultaneously. Ignored by ConcatMap.
func WithConcurrency(k int) FlattenOption {
	return func(c *flattenConfig) {
		if k > 0 {
			c.concurrency = k
		}
	}
}

// WithDelayFailure postpones inner and upstream failures until all live
// streams have terminated; multiple failures are joined.
func WithDelayFailure() FlattenOption {
	return func(c *flattenConfig) { c.delayFailure = true }
}

// MergeMap maps every upstream item to an inner stream and merges the inner
// streams, interleaving their items as they arrive. Per-inner item order is
// preserved; cross-inner order is not. Completes when upstream and all
// inner streams have completed.
func MergeMap[T, R any](m Multi[T], mapper func(T) Multi[R], opts ...FlattenOption) Multi[R] {
	cfg := flattenConfig{concurrency: defaultFlattenConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}
	return flatten(m, mapper, cfg)
}

// ConcatMap maps every upstream item to an inner stream and concatenates
// the inner streams strictly one at a time in upstream-item order, never
// interleaving.
func ConcatMap[T, R any](m Multi[T], mapper func(T) Multi[R], opts ...FlattenOption) Multi[R] {
	cfg := flattenConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.concurrency = 1
	return flatten(m, mapper, cfg)
}

func flatten[T, R any](m Multi[T], mapper func(T) Multi[R], cfg flattenConfig) Multi[R] {
	return New(func(s api.Subscriber[R]) {
		op := &flattenOp[T, R]{
			down:   s,
			mapper: mapper,
			cfg:    cfg,
			queue:  flow.NewQueue[innerItem[T, R]](),
			inners: make(map[*flattenInner[T, R]]struct{}),
		}
		m.Subscribe(op)
	})
}

type errorRef struct {
	err error
}

type innerItem[T, R any] struct {
	item R
	from *flattenInner[T, R]
}

type flattenOp[T, R any] struct {
	down   api.Subscriber[R]
	mapper func(T) Multi[R]
	cfg    flattenConfig

	demand flow.Demand
	gate   flow.Gate
	queue  *flow.Queue[innerItem[T, R]]
	life   flow.Lifecycle

	upstream     api.Subscription
	upstreamDone atomic.Bool
	active       atomic.Int32
	fastErr      atomic.Pointer[errorRef]

	errMu   sync.Mutex
	delayed []error

	mu     sync.Mutex
	inners map[*flattenInner[T, R]]struct{}
}

// --- outer subscriber ---

func (op *flattenOp[T, R]) OnSubscribe(s api.Subscription) {
	op.upstream = s
	op.life.Activate()
	op.down.OnSubscribe(&flattenSubscription[T, R]{op: op})
	s.Request(int64(op.cfg.concurrency))
}

func (op *flattenOp[T, R]) OnNext(item T) {
	if op.life.Terminal() {
		return
	}
	inner, err := callMultiMapper(op.mapper, item)
	if err != nil {
		// A broken mapper is never delayed: the outer stream is poisoned.
		op.failFast(err)
		return
	}
	fi := &flattenInner[T, R]{op: op}
	op.mu.Lock()
	op.inners[fi] = struct{}{}
	op.mu.Unlock()
	op.active.Add(1)
	inner.Subscribe(fi)
}

func (op *flattenOp[T, R]) OnError(err error) {
	op.upstreamDone.Store(true)
	if op.cfg.delayFailure {
		op.recordDelayed(err)
		op.gate.Drain(op.drain)
		return
	}
	op.failFast(err)
}

func (op *flattenOp[T, R]) OnComplete() {
	op.upstreamDone.Store(true)
	op.gate.Drain(op.drain)
}

// --- coordination ---

func (op *flattenOp[T, R]) recordDelayed(err error) {
	op.errMu.Lock()
	op.delayed = append(op.delayed, err)
	op.errMu.Unlock()
}

func (op *flattenOp[T, R]) failFast(err error) {
	op.fastErr.CompareAndSwap(nil, &errorRef{err: err})
	op.gate.Drain(op.drain)
}

func (op *flattenOp[T, R]) cancelAll() {
	if op.upstream != nil {
		op.upstream.Cancel()
	}
	op.mu.Lock()
	inners := make([]*flattenInner[T, R], 0, len(op.inners))
	for fi := range op.inners {
		inners = append(inners, fi)
	}
	op.inners = make(map[*flattenInner[T, R]]struct{})
	op.mu.Unlock()
	for _, fi := range inners {
		if s := fi.sub.load(); s != nil {
			s.Cancel()
		}
	}
}

func (op *flattenOp[T, R]) unregister(fi *flattenInner[T, R]) {
	op.mu.Lock()
	delete(op.inners, fi)
	op.mu.Unlock()
}

func (op *flattenOp[T, R]) drain() {
	for {
		if op.life.Cancelled() {
			op.queue.Clear()
			return
		}
		if ref := op.fastErr.Load(); ref != nil {
			if op.life.Fail() {
				op.queue.Clear()
				op.cancelAll()
				op.down.OnError(ref.err)
			}
			return
		}
		delivered := false
		if op.demand.Current() > 0 {
			if ev, ok := op.queue.Pop(); ok {
				op.demand.Consume(1)
				op.down.OnNext(ev.item)
				ev.from.requestOne()
				delivered = true
			}
		}
		if delivered {
			continue
		}
		if op.upstreamDone.Load() && op.active.Load() == 0 && op.queue.Len() == 0 {
			op.finish()
		}
		return
	}
}

func (op *flattenOp[T, R]) finish() {
	op.errMu.Lock()
	errs := op.delayed
	op.delayed = nil
	op.errMu.Unlock()
	switch {
	case len(errs) == 1:
		if op.life.Fail() {
			op.down.OnError(errs[0])
		}
	case len(errs) > 1:
		if op.life.Fail() {
			op.down.OnError(errors.Join(errs...))
		}
	default:
		if op.life.Complete() {
			op.down.OnComplete()
		}
	}
}

// --- downstream subscription ---

type flattenSubscription[T, R any] struct {
	op *flattenOp[T, R]
}

func (s *flattenSubscription[T, R]) Request(n int64) {
	op := s.op
	if op.life.Terminal() {
		return
	}
	if err := op.demand.Request(n); err != nil {
		op.failFast(err)
		return
	}
	op.gate.Drain(op.drain)
}

func (s *flattenSubscription[T, R]) Cancel() {
	op := s.op
	if op.life.Cancel() {
		op.cancelAll()
		op.queue.Clear()
	}
}

// --- inner subscriber ---

type flattenInner[T, R any] struct {
	op   *flattenOp[T, R]
	sub  subscriptionSlot
	done atomic.Bool
}

func (fi *flattenInner[T, R]) OnSubscribe(s api.Subscription) {
	fi.sub.store(s)
	if fi.op.life.Cancelled() {
		s.Cancel()
		return
	}
	s.Request(1)
}

func (fi *flattenInner[T, R]) OnNext(item R) {
	op := fi.op
	if op.life.Terminal() {
		return
	}
	op.queue.Push(innerItem[T, R]{item: item, from: fi})
	op.gate.Drain(op.drain)
}

func (fi *flattenInner[T, R]) OnError(err error) {
	op := fi.op
	if !fi.done.CompareAndSwap(false, true) {
		return
	}
	op.active.Add(-1)
	op.unregister(fi)
	if op.cfg.delayFailure {
		op.recordDelayed(err)
		if !op.life.Terminal() && !op.upstreamDone.Load() {
			op.upstream.Request(1)
		}
		op.gate.Drain(op.drain)
		return
	}
	op.failFast(err)
}

func (fi *flattenInner[T, R]) OnComplete() {
	op := fi.op
	if !fi.done.CompareAndSwap(false, true) {
		return
	}
	op.active.Add(-1)
	op.unregister(fi)
	if !op.life.Terminal() && !op.upstreamDone.Load() {
		op.upstream.Request(1)
	}
	op.gate.Drain(op.drain)
}

// requestOne asks the inner for its next item after one was delivered
// downstream, keeping exactly one outstanding item per live inner.
func (fi *flattenInner[T, R]) requestOne() {
	if fi.done.Load() {
		return
	}
	if s := fi.sub.load(); s != nil {
		s.Request(1)
	}
}

func callMultiMapper[T, R any](mapper func(T) Multi[R], item T) (m Multi[R], err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = api.RecoveredPanic(rec)
		}
	}()
	m = mapper(item)
	return
}
