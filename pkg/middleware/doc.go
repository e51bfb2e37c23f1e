// Package middleware provides production-grade mutation middleware for dux
// registries.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//   - Structured logging middleware
//
// Middleware is installed when the registry is created:
//
//	reg := registry.New(
//	    registry.WithMiddleware(
//	        middleware.Logging(logger),
//	        middleware.OpenTelemetry(),
//	        middleware.Prometheus(middleware.WithNamespace("myapp")),
//	    ),
//	)
//
// The first middleware is the outermost. Every middleware sees every
// mutation of every store, including reductions a store makes on itself
// (for example a synced Persistent store folding in an external write).
//
// # OpenTelemetry Middleware
//
// Each mutation runs inside a span named "dux.mutate <store>". The span
// carries the store name, the resulting version, whether the value changed
// and the subscriber count. A panic in the reducer is recorded on the span
// and then re-raised.
//
// # Prometheus Metrics
//
// The Prometheus middleware collects:
//   - dux_mutations_total: mutations by store and result (changed, unchanged, panic)
//   - dux_mutation_duration_seconds: reducer plus fan-out duration
//   - dux_subscribers: current subscribers per store
//   - dux_notifications_total: callbacks delivered per store
//   - dux_store_version: last published version per store
//
// Expose them with promhttp, or through the devtools server which mounts
// /metrics for the same prometheus.Gatherer.
package middleware
