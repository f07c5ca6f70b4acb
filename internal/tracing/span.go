package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartPhaseSpan starts a span covering one suite phase.
func StartPhaseSpan(ctx context.Context, tracer trace.Tracer, phase string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "phase "+phase,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(attribute.String("harness.phase", phase))
	return ctx, span
}

// StartOpSpan starts a span for one store or service operation inside a
// phase.
func StartOpSpan(ctx context.Context, tracer trace.Tracer, op, userID string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("harness.op", op))
	if userID != "" {
		span.SetAttributes(attribute.String("harness.user_id", userID))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
