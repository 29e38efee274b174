// File: uni/outcome.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uni

type outcomeKind uint8

const (
	outcomeItem outcomeKind = iota
	outcomeEmpty
	outcomeFailure
)

// outcome is the materialized terminal signal of a Uni, used wherever one
// needs to be stored or replayed (cache, await).
type outcome[T any] struct {
	kind outcomeKind
	item T
	err  error
}

func (o outcome[T]) deliver(s Subscriber[T]) {
	switch o.kind {
	case outcomeItem:
		s.OnItem(o.item)
	case outcomeEmpty:
		s.OnEmpty()
	default:
		s.OnFailure(o.err)
	}
}
