// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contract layer of hioload-flow. Defines the publish/subscribe protocol
// (Publisher, Subscriber, Subscription), the cancellation handle used by
// single-result pipelines, the executor contract consumed by EmitOn stages,
// and the library-wide error taxonomy.
//
// Implementations live in core/ and in the feature packages (uni, multi,
// pull). Nothing in this package allocates or spawns goroutines.
package api
