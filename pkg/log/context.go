package log

import (
	"context"
)

type logCtxKey struct{}

// Context returns a copy of the parent context in which the logger associated
// with it is the one given.
//
// Once you have a context with a logger, all additional logging should be
// made by using the static methods exported by this package.
func Context(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, logCtxKey{}, log)
}

// FromContext returns the logger instance contained in a context via the usage
// of the log.Context function.
//
// If the context contains no logger, then DefaultLogger is returned.
func FromContext(ctx context.Context) Logger {
	l, _ := ctx.Value(logCtxKey{}).(Logger)
	if l == nil {
		return DefaultLogger
	}
	return l
}

// Debug logs a message at DebugLevel using the logger contained in ctx.
func Debug(ctx context.Context, msg string, fields ...Field) {
	FromContext(ctx).Debug(msg, fields...)
}

// Info logs a message at InfoLevel using the logger contained in ctx.
func Info(ctx context.Context, msg string, fields ...Field) {
	FromContext(ctx).Info(msg, fields...)
}

// Warn logs a message at WarnLevel using the logger contained in ctx.
func Warn(ctx context.Context, msg string, fields ...Field) {
	FromContext(ctx).Warn(msg, fields...)
}

// Error logs a message at ErrorLevel using the logger contained in ctx.
func Error(ctx context.Context, msg string, fields ...Field) {
	FromContext(ctx).Error(msg, fields...)
}
