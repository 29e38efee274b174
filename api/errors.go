// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy for the hioload-flow library.

package api

import "fmt"

// Common errors used across the library.
var (
	// ErrIllegalDemand reports a Request call with a non-positive amount.
	// Delivered as a terminal OnError, never panicked.
	ErrIllegalDemand = fmt.Errorf("non-positive demand requested")

	// ErrIllegalState reports a protocol violation, such as subscribing a
	// second time to a single-use source.
	ErrIllegalState = fmt.Errorf("illegal subscription state")

	// ErrOverflow reports that a producer outran its consumer under the
	// error overflow strategy.
	ErrOverflow = fmt.Errorf("buffer overflow, downstream cannot keep up")

	// ErrExecutorClosed reports a task submission to a closed executor.
	ErrExecutorClosed = fmt.Errorf("executor is closed")
)

// UpstreamError wraps an error raised by user-supplied transformation code
// (mapper, predicate, scanner) or recovered from a panicking callback. The
// pipeline terminates with the wrapping error as its failure.
type UpstreamError struct {
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure: %v", e.Err)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// WrapUpstream wraps err into an UpstreamError unless it already is one.
func WrapUpstream(err error) error {
	if _, ok := err.(*UpstreamError); ok {
		return err
	}
	return &UpstreamError{Err: err}
}

// RecoveredPanic turns a recovered panic value into an error suitable for
// terminal propagation.
func RecoveredPanic(v any) error {
	if err, ok := v.(error); ok {
		return &UpstreamError{Err: err}
	}
	return &UpstreamError{Err: fmt.Errorf("panic: %v", v)}
}
