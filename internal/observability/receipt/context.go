package receipt

import "context"

type writerKey struct{}

// WithWriter attaches the --receipt writer; nil leaves receipts off
func WithWriter(ctx context.Context, w Writer) context.Context {
	if w == nil {
		return ctx
	}
	return context.WithValue(ctx, writerKey{}, w)
}

// From context, nil when receipts are off
func From(ctx context.Context) Writer {
	w, _ := ctx.Value(writerKey{}).(Writer)
	return w
}

// Enabled reports whether this command leaves a receipt. Sessions skip
// hashing inputs when it does not.
func Enabled(ctx context.Context) bool {
	return From(ctx) != nil
}
