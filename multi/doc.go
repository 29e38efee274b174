// Package multi
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Multi-result asynchronous pipeline over the api publish/subscribe
// protocol. Every stage preserves the protocol invariants: items delivered
// never exceed requested demand, nothing follows a terminal event, and
// downstream cancellation propagates upstream before any further emission
// attempt.
//
// Same-type operators (Filter, Peek, Take, Skip, EmitOn) are methods on
// Multi; type-changing operators (Map, FilterMap, Scan, MergeMap,
// ConcatMap, Collect) are package functions since Go methods cannot
// introduce type parameters.
package multi
