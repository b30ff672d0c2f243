// Package observability provides the metrics extension for the harness.
// The MetricsExtension implements lifecycle hooks to record system-wide
// counters for session, checkpoint, redirect, pause, and scale events.
//
// For per-session tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
