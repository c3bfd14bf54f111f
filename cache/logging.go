package cache

import "go.uber.org/zap"

// Logger is the structured, leveled sink the eviction core writes to at
// its verbose-tracing call sites. Nil-safe: a nil *Logger behaves like
// NopLogger().
type Logger struct {
	z *zap.Logger
}

// NewLogger wraps an existing zap.Logger.
func NewLogger(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// NopLogger returns a Logger that discards everything, the default used
// when a caller doesn't wire one in.
func NopLogger() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) core() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

func (l *Logger) debug(msg string, fields ...zap.Field) {
	l.core().Debug(msg, fields...)
}

func (l *Logger) warn(msg string, fields ...zap.Field) {
	l.core().Warn(msg, fields...)
}
