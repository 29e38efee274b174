// Package api
// Author: momentics
//
// Executor contract for relocating pipeline events onto worker pools.

package api

// Executor abstracts a pool of workers executing submitted tasks. No
// ordering is guaranteed between tasks; stages needing ordered delivery
// (EmitOn) serialize through their own drain gate and keep at most one task
// outstanding.
type Executor interface {
	// Submit schedules task for execution. Returns an error once the
	// executor is closed; the task is then never run.
	Submit(task func()) error

	// NumWorkers returns current number of active worker routines.
	NumWorkers() int

	// Resize adjusts the concurrency at runtime.
	Resize(newCount int)
}
