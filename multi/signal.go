// File: multi/signal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package multi

import "github.com/momentics/hioload-flow/api"

type signalKind uint8

const (
	signalItem signalKind = iota
	signalComplete
	signalError
)

// signal is a reified subscriber event, queued by stages that decouple
// production from delivery (EmitOn bridge, emitter buffers).
type signal[T any] struct {
	kind signalKind
	item T
	err  error
}

// callMapper invokes a user transform, converting errors and panics into a
// terminal-ready UpstreamError.
func callMapper[T, R any](mapper func(T) (R, error), item T) (r R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = api.RecoveredPanic(rec)
		}
	}()
	r, err = mapper(item)
	if err != nil {
		err = api.WrapUpstream(err)
	}
	return
}
