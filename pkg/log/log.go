// Package log is the structured logging layer shared by the session, the façades
// and the CLI. Loggers are passed explicitly or carried in a context; there is no
// package-level logger.
//
//	lg := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelDebug})
//	ctx = log.SetContextLogger(ctx, lg.WithName("session"))
//	log.FromContext(ctx).Info("connected", "endpoint", url)
package log

// Logger is a leveled key/value logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs and terminates the process for the zap implementation.
	Fatal(msg string, keysAndValues ...any)

	// WithKV returns a logger that attaches key=value to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the pairs attached through WithKV.
	GetAllKV() []any
	// WithName returns a child logger; names are joined with dots.
	WithName(name string) Logger
	Name() string
	// AddCallerSkip is used by wrappers so the reported caller stays correct.
	AddCallerSkip(skip int) Logger
}

// Level is a logging severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder receives log entries as trace span events.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string
	RecordEvent(name string, keysAndValues ...any)
	RecordError(name string, keysAndValues ...any)
}
