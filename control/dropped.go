// control/dropped.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide sink for failures that cannot be delivered downstream
// anymore, e.g. an emitter Fail call arriving after the pipeline has
// already terminated. Silent by default.

package control

import "sync/atomic"

type droppedHandler struct {
	fn func(error)
}

var dropped atomic.Pointer[droppedHandler]

// SetDroppedFailureHandler installs fn as the process-wide handler for
// undeliverable failures. Passing nil restores the silent default. Safe for
// concurrent use.
func SetDroppedFailureHandler(fn func(error)) {
	if fn == nil {
		dropped.Store(nil)
		return
	}
	dropped.Store(&droppedHandler{fn: fn})
}

// ReportDroppedFailure forwards err to the installed handler, if any.
// Called by pipeline stages with failures that arrived after termination.
func ReportDroppedFailure(err error) {
	if h := dropped.Load(); h != nil {
		h.fn(err)
	}
}
