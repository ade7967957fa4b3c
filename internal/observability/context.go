// Package observability carries per-invocation identity through a govgate
// run. Every log line, span and receipt of one run shares the op id.
package observability

import (
	"context"

	"github.com/google/uuid"
)

type opIDKey struct{}

// WithOpID stores a fresh random op id. Call once per CLI invocation.
func WithOpID(ctx context.Context) context.Context {
	return WithGivenOpID(ctx, uuid.NewString())
}

// WithGivenOpID stores id as the op id, e.g. one handed down by CI
func WithGivenOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey{}, id)
}

// OpID from context, "" when unset
func OpID(ctx context.Context) string {
	if id, ok := ctx.Value(opIDKey{}).(string); ok {
		return id
	}
	return ""
}
