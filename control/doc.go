// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime introspection layer for hioload-flow.
//
// Provides concurrent-safe primitives for observing pipelines from the
// outside:
//   - MetricsRegistry: thread-safe counter/gauge map with dynamic
//     registration and snapshot reads
//   - Dropped-failure hook: last-resort sink for failures that arrive after
//     a pipeline has terminated and can no longer be delivered downstream
package control
