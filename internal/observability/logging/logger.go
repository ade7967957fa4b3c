// Package logging is govgate's structured logger. Human-readable lines by
// default, JSONL for machine consumption.
package logging

import (
	"context"
	"io"
	"os"
)

type Logger interface {
	Debug(component, msg string, fields ...any)
	Info(component, msg string, fields ...any)
	Warn(component, msg string, fields ...any)
	Error(component, msg string, fields ...any)
	Event(ctx context.Context, event string, fields map[string]any)
	Close() error
}

type loggerKey struct{}

func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// From context, a no-op logger when none was set
func From(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Nop()
}

// Nop discards everything
func Nop() Logger {
	return &noopLogger{}
}

func NewLogger(cfg Config) (Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var w io.Writer
	var closer io.Closer
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		w = f
		closer = f
	}

	sink := &sink{writer: w, closer: closer, minLevel: levelPriority(cfg.Level)}
	if cfg.Format == FormatJSONL {
		return &jsonlLogger{sink: sink}, nil
	}
	return &prettyLogger{sink: sink}, nil
}

type noopLogger struct{}

func (n *noopLogger) Debug(component, msg string, fields ...any)                    {}
func (n *noopLogger) Info(component, msg string, fields ...any)                     {}
func (n *noopLogger) Warn(component, msg string, fields ...any)                     {}
func (n *noopLogger) Error(component, msg string, fields ...any)                    {}
func (n *noopLogger) Event(ctx context.Context, event string, fields map[string]any) {}
func (n *noopLogger) Close() error                                                  { return nil }

// fieldMap pairs up variadic key/value fields, dropping non-string keys
func fieldMap(fields []any) map[string]any {
	if len(fields) < 2 {
		return nil
	}
	m := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			m[key] = fields[i+1]
		}
	}
	return m
}
