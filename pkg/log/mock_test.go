package log_test

import (
	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

type entry struct {
	Level         log.Level
	Message       string
	KeysAndValues []any
}

// recordingLogger keeps the last entry and the configuration applied to it.
type recordingLogger struct {
	last       *entry
	name       string
	kv         []any
	callerSkip int
}

func newRecordingLogger() *recordingLogger { return &recordingLogger{last: &entry{}} }

func (l *recordingLogger) record(level log.Level, msg string, kv []any) {
	*l.last = entry{Level: level, Message: msg, KeysAndValues: kv}
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.record(log.LevelDebug, msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.record(log.LevelInfo, msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.record(log.LevelWarn, msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.record(log.LevelError, msg, kv) }
func (l *recordingLogger) Fatal(msg string, kv ...any) { l.record(log.LevelFatal, msg, kv) }

func (l *recordingLogger) WithKV(key string, value any) log.Logger {
	c := *l
	c.kv = append(append([]any{}, l.kv...), key, value)
	return &c
}

func (l *recordingLogger) GetAllKV() []any { return l.kv }

func (l *recordingLogger) WithName(name string) log.Logger {
	c := *l
	c.name = name
	return &c
}

func (l *recordingLogger) Name() string { return l.name }

func (l *recordingLogger) AddCallerSkip(skip int) log.Logger {
	l.callerSkip += skip
	return l
}

type recordingRecorder struct {
	hasErr bool
	last   []any
}

func (r *recordingRecorder) TraceID() string { return "trace-1" }
func (r *recordingRecorder) SpanID() string  { return "span-1" }

func (r *recordingRecorder) RecordEvent(name string, kv ...any) {
	r.last = append([]any{"msg", name}, kv...)
}

func (r *recordingRecorder) RecordError(name string, kv ...any) {
	r.hasErr = true
	r.last = append([]any{"msg", name}, kv...)
}
