// File: core/flow/gate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Serialized-drain discipline. A Gate lets concurrent producers hand work to
// whichever goroutine currently holds the drain turn, without blocking: the
// missed-work counter guarantees that work offered while a drain is running
// is picked up by that same drainer before it exits.

package flow

import "sync/atomic"

// Gate serializes drain loops over shared per-stage state. The zero value is
// ready to use.
type Gate struct {
	wip atomic.Int32
}

// Drain runs fn if the caller wins the drain turn, re-running it while more
// work was offered concurrently. Callers that lose the turn return
// immediately; their work is handled by the current drainer.
func (g *Gate) Drain(fn func()) {
	if g.wip.Add(1) != 1 {
		return
	}
	missed := int32(1)
	for {
		fn()
		missed = g.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// Offer registers work and reports whether the caller became the drainer.
// Used by stages that relocate the drain onto an executor instead of running
// it inline.
func (g *Gate) Offer() bool {
	return g.wip.Add(1) == 1
}

// Exhaust consumes missed offers after a drain pass. missed is the count the
// drainer has processed so far; the return value is the new missed count, 0
// meaning the drainer may exit.
func (g *Gate) Exhaust(missed int32) int32 {
	return g.wip.Add(-missed)
}
