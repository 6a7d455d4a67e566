// Package middleware provides observability middleware for discuss
// mutations.
//
// This package includes:
//
//   - OpenTelemetry tracing of every mutation attempt
//   - Prometheus metrics for mutation attempts and query cache events
//
// # OpenTelemetry Middleware
//
// Each attempt runs inside a span named "mutation <name>" carrying the
// mutation name and cache key. The span context is passed down, so the API
// client's request span becomes its child.
//
//	del := comments.UseDeleteComment(comments.Deps{
//	    ...
//	    Middleware: []query.Middleware{middleware.OpenTelemetry()},
//	}, opts)
//
// # Prometheus Metrics
//
// Metrics collected:
//
//   - discuss_mutations_total: attempts by mutation and status
//   - discuss_mutation_duration_seconds: attempt duration histogram
//   - discuss_mutation_errors_total: failures by mutation and error type
//   - discuss_cache_events_total: query cache events by type
//
// Usage:
//
//	m := middleware.NewMetrics(middleware.WithNamespace("myapp"))
//	unsubscribe := m.ObserveCache(queryClient)
//	defer unsubscribe()
//
//	opts := []query.Middleware{m.Middleware()}
//
// Then expose the registry:
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware
