package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/harness/session"
)

// tracerName is the instrumentation scope name for harness tracing.
const tracerName = "github.com/xraph/harness"

// Tracing returns middleware that wraps session execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: harness.issue.id, harness.issue.priority,
// harness.session.goal. On error, the span status is set to codes.Error
// with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, pc *session.PrimingContext, next Handler) (*session.Result, error) {
		ctx, span := tracer.Start(ctx, "harness.session.execute",
			trace.WithAttributes(
				attribute.String("harness.issue.id", pc.Item.ID),
				attribute.Int("harness.issue.priority", pc.Item.Priority),
				attribute.String("harness.session.goal", pc.Goal),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		res, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
			if res != nil {
				span.SetAttributes(attribute.String("harness.session.outcome", string(res.Outcome)))
			}
		}

		return res, err
	}
}
