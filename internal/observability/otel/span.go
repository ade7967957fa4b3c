package otel

import (
	"context"

	"github.com/govgate/govgate/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AttrPrefix for govgate span attributes
const AttrPrefix = "govgate."

// Start a span when tracing is on. The returned end func records err
// and closes the span; it is safe to call when tracing is off.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	tracer := tracerFrom(ctx)
	if tracer == nil {
		return ctx, func(error) {}
	}
	attrs = append(attrs, attribute.String(AttrPrefix+"op_id", observability.OpID(ctx)))
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed")
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}
}

// Annotate adds attributes to the current span, if any
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
