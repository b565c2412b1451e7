package log_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

func kvMap(kv []any) map[string]any {
	m := make(map[string]any)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			m[k] = kv[i+1]
		}
	}
	return m
}

func TestSpanLogger(t *testing.T) {
	t.Parallel()

	inner := newRecordingLogger()
	rec := &recordingRecorder{}
	lg := log.NewSpanLogger(inner, rec).WithName("session").WithKV("endpoint", "wss://node")
	assert.Equal(t, 1, inner.callerSkip)

	lg.Info("connected", "attempt", 2)

	got := kvMap(inner.last.KeysAndValues)
	assert.Equal(t, log.LevelInfo, inner.last.Level)
	assert.Equal(t, "trace-1", got["traceId"])
	assert.Equal(t, "span-1", got["spanId"])
	assert.Equal(t, 2, got["attempt"])

	ev := kvMap(rec.last)
	assert.Equal(t, "connected", ev["msg"])
	assert.Equal(t, "info", ev["level"])
	assert.Equal(t, "session", ev["component"])
	assert.Equal(t, "wss://node", ev["endpoint"])
	assert.False(t, rec.hasErr)

	lg.Error("dial failed")
	assert.True(t, rec.hasErr)
	assert.Equal(t, log.LevelError, inner.last.Level)
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, isNoop := log.FromContext(ctx).(log.NoopLogger)
	assert.True(t, isNoop)

	ctx = log.SetContextLogger(ctx, log.NewZapLogger(log.Config{}))
	_, isZap := log.FromContext(ctx).(*log.ZapLogger)
	assert.True(t, isZap)

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{1},
	})
	ctx = trace.ContextWithSpanContext(context.Background(), spanCtx)
	ctx = log.SetContextLogger(ctx, log.NewZapLogger(log.Config{}))
	_, isSpan := log.FromContext(ctx).(log.SpanLogger)
	assert.True(t, isSpan)
}

func TestZapLoggerLogfmt(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lg := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelWarn, Output: "stdout"}, zapcore.AddSync(&buf))
	lg = lg.WithName("rpc").WithKV("session", "abc")

	lg.Info("dropped")
	assert.Empty(t, buf.String())

	lg.Warn("reconnecting", "attempt", 3)
	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "msg=reconnecting")
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, "attempt=3")
	assert.Contains(t, out, "logger=rpc")
	assert.Equal(t, []any{"session", "abc"}, lg.GetAllKV())
	assert.Equal(t, "rpc", lg.Name())
}

func TestNoopLogger(t *testing.T) {
	t.Parallel()

	base := log.NewNoopLogger().WithName("session").WithKV("endpoint", "wss://node")
	child := base.WithName("fanout").WithKV("subscription", 3)

	assert.Equal(t, "session", base.Name())
	assert.Equal(t, "session.fanout", child.Name())
	assert.Equal(t, []any{"endpoint", "wss://node"}, base.GetAllKV())
	assert.Equal(t, []any{"endpoint", "wss://node", "subscription", 3}, child.GetAllKV())

	rec := &recordingRecorder{}
	log.NewSpanLogger(child, rec).Warn("queue full")
	ev := kvMap(rec.last)
	assert.Equal(t, "session.fanout", ev["component"])
	assert.Equal(t, 3, ev["subscription"])
}
