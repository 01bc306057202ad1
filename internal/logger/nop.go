package logger

// NoOpLogger discards everything. Used in tests and when a caller passes nil.
type NoOpLogger struct{}

// NewNop creates a no-op logger.
func NewNop() Logger {
	return NoOpLogger{}
}

func (NoOpLogger) Debug(string, ...Field) {}
func (NoOpLogger) Info(string, ...Field)  {}
func (NoOpLogger) Warn(string, ...Field)  {}
func (NoOpLogger) Error(string, ...Field) {}

func (l NoOpLogger) With(...Field) Logger { return l }

func (NoOpLogger) Sync() error { return nil }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNop()
	}
	return l
}
