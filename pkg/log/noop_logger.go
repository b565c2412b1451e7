package log

var _ Logger = NoopLogger{}

// NoopLogger drops every entry. It still tracks its name and attached pairs,
// so a SpanLogger wrapping it reports the same component and fields.
type NoopLogger struct {
	name string
	kv   []any
}

func NewNoopLogger() Logger { return NoopLogger{} }

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}
func (NoopLogger) Fatal(string, ...any) {}

func (n NoopLogger) WithKV(key string, value any) Logger {
	n.kv = append(append([]any(nil), n.kv...), key, value)
	return n
}

func (n NoopLogger) GetAllKV() []any { return n.kv }

func (n NoopLogger) WithName(name string) Logger {
	if n.name != "" {
		name = n.name + "." + name
	}
	n.name = name
	return n
}

func (n NoopLogger) Name() string { return n.name }

func (n NoopLogger) AddCallerSkip(int) Logger { return n }
