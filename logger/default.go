package logger

import "sync/atomic"

var defLogger atomic.Value

func init() {
	defLogger.Store(holder{NewSlog(InfoLevel, false)})
}

// holder keeps atomic.Value storing a single concrete type.
type holder struct{ Logger }

func current() Logger {
	return defLogger.Load().(holder).Logger //nolint:forcetypeassert
}

func Debug(msg string, keysAndValues ...any) {
	current().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	current().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	current().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	current().Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	current().Fatal(msg, keysAndValues...)
}

func SetLevel(level Level) {
	current().SetLevel(level)
}

// GetLogger returns the package default logger.
func GetLogger() Logger {
	return current()
}

// SetDefault replaces the package default logger. Configs created afterwards
// pick it up through GetLogger; existing transports keep their logger.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(holder{l})
}

func With(keyValues ...any) Logger {
	return current().With(keyValues...)
}
