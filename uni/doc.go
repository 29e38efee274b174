// Package uni
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-result asynchronous pipeline. A Uni yields exactly one of three
// outcomes to each subscriber: an item, an explicit absence of item, or a
// failure. Sources are lazy: nothing runs until Subscribe, and deferred
// sources recompute per subscriber unless memoized.
//
// Type-changing operators (Map, FlatMap) are package functions because Go
// methods cannot introduce type parameters; same-type operators (Memoize,
// EmitOn) are methods.
package uni
