package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/harness/session"
)

// meterName is the instrumentation scope name for harness metrics.
const meterName = "github.com/xraph/harness"

// Metrics returns middleware that records per-session execution metrics
// using the global OTel MeterProvider. If no MeterProvider is configured,
// noop instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - harness.session.duration (Float64Histogram): execution time in
//     seconds, with attributes: outcome, status ("ok" or "error")
//   - harness.session.executions (Int64Counter): total sessions,
//     with attributes: outcome, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"harness.session.duration",
		metric.WithDescription("Duration of session execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"harness.session.executions",
		metric.WithDescription("Total number of session executions"),
		metric.WithUnit("{session}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, _ *session.PrimingContext, next Handler) (*session.Result, error) {
		start := time.Now()
		res, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}
		outcome := ""
		if res != nil {
			outcome = string(res.Outcome)
		}

		attrs := metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return res, err
	}
}
