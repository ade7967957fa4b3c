package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type handleKey struct{}

// Handle where govgate spans go, and how to flush them at exit
type Handle struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

// Close flushes pending spans, waiting at most timeout. Safe on a nil
// Handle, which is what a run without --otel has.
func (h *Handle) Close(timeout time.Duration) error {
	if h == nil || h.Shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return h.Shutdown(ctx)
}

// WithHandle attaches h; a nil h leaves ctx as it was
func WithHandle(ctx context.Context, h *Handle) context.Context {
	if h == nil {
		return ctx
	}
	return context.WithValue(ctx, handleKey{}, h)
}

// From context, nil when tracing is off
func From(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleKey{}).(*Handle)
	return h
}

func tracerFrom(ctx context.Context) trace.Tracer {
	if h := From(ctx); h != nil {
		return h.Tracer
	}
	return nil
}
