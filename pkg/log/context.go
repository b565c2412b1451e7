package log

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type loggerKey struct{}

// SetContextLogger returns a copy of ctx carrying lg. A nil lg stores a
// NoopLogger. If ctx already holds a valid span, entries are also recorded
// on that span.
func SetContextLogger(ctx context.Context, lg Logger) context.Context {
	if lg == nil {
		lg = NewNoopLogger()
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		lg = NewSpanLogger(lg, NewOtelSpanEventRecorder(span))
	}
	return context.WithValue(ctx, loggerKey{}, lg)
}

// FromContext returns the logger set by SetContextLogger. Contexts without
// one yield a NoopLogger, so callers never check for nil.
func FromContext(ctx context.Context) Logger {
	lg, ok := ctx.Value(loggerKey{}).(Logger)
	if !ok {
		return NewNoopLogger()
	}
	return lg
}
