package log

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	_ Logger            = SpanLogger{}
	_ SpanEventRecorder = &OtelSpanEventRecorder{}
)

// SpanLogger writes every entry to the wrapped logger, tagged with trace and span
// ids, and mirrors it onto a span as an event. Error and Fatal mark the span failed.
type SpanLogger struct {
	lg  Logger
	ser SpanEventRecorder
}

func NewSpanLogger(lg Logger, ser SpanEventRecorder) Logger {
	return SpanLogger{lg: lg.AddCallerSkip(1), ser: ser}
}

func (sl SpanLogger) Debug(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventKV(LevelDebug, keysAndValues)...)
	sl.lg.Debug(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) Info(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventKV(LevelInfo, keysAndValues)...)
	sl.lg.Info(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) Warn(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.eventKV(LevelWarn, keysAndValues)...)
	sl.lg.Warn(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) Error(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.eventKV(LevelError, keysAndValues)...)
	sl.lg.Error(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) Fatal(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.eventKV(LevelFatal, keysAndValues)...)
	sl.lg.Fatal(msg, sl.traceKV(keysAndValues)...)
}

func (sl SpanLogger) WithKV(key string, value any) Logger {
	return SpanLogger{lg: sl.lg.WithKV(key, value), ser: sl.ser}
}

func (sl SpanLogger) GetAllKV() []any { return sl.lg.GetAllKV() }

func (sl SpanLogger) WithName(name string) Logger {
	return SpanLogger{lg: sl.lg.WithName(name), ser: sl.ser}
}

func (sl SpanLogger) Name() string { return sl.lg.Name() }

func (sl SpanLogger) AddCallerSkip(skip int) Logger {
	return SpanLogger{lg: sl.lg.AddCallerSkip(skip), ser: sl.ser}
}

func (sl SpanLogger) traceKV(keysAndValues []any) []any {
	return append([]any{"traceId", sl.ser.TraceID(), "spanId", sl.ser.SpanID()}, keysAndValues...)
}

// eventKV carries the logger's own context onto the span since span events do
// not see the wrapped logger's fields.
func (sl SpanLogger) eventKV(level Level, keysAndValues []any) []any {
	kv := append([]any{"level", string(level), "component", sl.lg.Name()}, sl.lg.GetAllKV()...)
	return append(kv, keysAndValues...)
}

// OtelSpanEventRecorder records log entries as events on an OpenTelemetry span.
type OtelSpanEventRecorder struct {
	span trace.Span
}

func NewOtelSpanEventRecorder(span trace.Span) *OtelSpanEventRecorder {
	return &OtelSpanEventRecorder{span: span}
}

func (r *OtelSpanEventRecorder) TraceID() string { return r.span.SpanContext().TraceID().String() }
func (r *OtelSpanEventRecorder) SpanID() string  { return r.span.SpanContext().SpanID().String() }

func (r *OtelSpanEventRecorder) RecordEvent(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(toAttributes(keysAndValues)...))
}

func (r *OtelSpanEventRecorder) RecordError(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(toAttributes(keysAndValues)...))
	r.span.SetStatus(codes.Error, name)
}

// toAttributes converts key/value pairs to span attributes. An odd tail gets the
// value "MISSING"; a non-string key stops conversion and keeps the remainder as
// a single string attribute.
func toAttributes(keysAndValues []any) []attribute.KeyValue {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = append(keysAndValues, "MISSING")
	}

	attrs := make([]attribute.KeyValue, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			attrs = append(attrs, attribute.String("invalidKeysAndValues", fmt.Sprint(keysAndValues[i:])))
			break
		}

		switch v := keysAndValues[i+1].(type) {
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int32:
			attrs = append(attrs, attribute.Int64(key, int64(v)))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case uint32:
			attrs = append(attrs, attribute.Int64(key, int64(v)))
		case uint64:
			attrs = append(attrs, attribute.Int64(key, int64(v)))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case error:
			attrs = append(attrs, attribute.String(key, v.Error()))
		case fmt.Stringer:
			attrs = append(attrs, attribute.String(key, v.String()))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return attrs
}
