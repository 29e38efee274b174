// File: core/flow/demand.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Atomic, overflow-safe tracking of outstanding requested items for one
// subscription. Demand only moves forward via Request and backward via
// Consume; once saturated at api.Unbounded it stays there.

package flow

import (
	"sync/atomic"

	"github.com/momentics/hioload-flow/api"
)

// Demand is the outstanding-request counter of a single subscription.
// Safe for concurrent use by any number of goroutines. The zero value is
// ready to use with zero outstanding demand.
type Demand struct {
	n atomic.Int64
}

// Request adds n to the outstanding demand, saturating at api.Unbounded.
// Returns api.ErrIllegalDemand when n <= 0; the caller is responsible for
// turning that into a terminal OnError signal.
func (d *Demand) Request(n int64) error {
	if n <= 0 {
		return api.ErrIllegalDemand
	}
	for {
		cur := d.n.Load()
		if cur == api.Unbounded {
			return nil
		}
		next := cur + n
		if next < 0 { // overflow
			next = api.Unbounded
		}
		if d.n.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Consume subtracts k items right around their delivery. A no-op once
// unbounded; never moves the counter below zero.
func (d *Demand) Consume(k int64) {
	for {
		cur := d.n.Load()
		if cur == api.Unbounded {
			return
		}
		next := cur - k
		if next < 0 {
			next = 0
		}
		if d.n.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Current returns the outstanding demand at this instant.
func (d *Demand) Current() int64 {
	return d.n.Load()
}

// Unbounded reports whether the counter has saturated.
func (d *Demand) Unbounded() bool {
	return d.n.Load() == api.Unbounded
}
