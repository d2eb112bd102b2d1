// Package logging provides structured, leveled, context-aware logging
// built on zap. It mirrors the teacher's call shape:
// log.Debug(ctx, "message", logging.NewKV("Key", value)).
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// KV is a single structured logging field.
type KV struct {
	Key   string
	Value any
}

// NewKV builds a KV pair for attaching structured context to a log line.
func NewKV(key string, value any) KV {
	return KV{Key: key, Value: value}
}

func toFields(kvs []KV) []zap.Field {
	fields := make([]zap.Field, 0, len(kvs))
	for _, kv := range kvs {
		fields = append(fields, zap.Any(kv.Key, kv.Value))
	}
	return fields
}

// Logger wraps a zap.SugaredLogger-like surface with the KV call
// convention used across the sync core.
type Logger struct {
	base *zap.Logger
	name string
}

// New creates a named Logger at the given level ("debug", "info", "warn",
// "error"). An empty level defaults to "info".
func New(name string, level string) *Logger {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{base: base.Named(name), name: name}
}

// Nop returns a Logger that discards all output, useful in tests.
func Nop() *Logger {
	return &Logger{base: zap.NewNop()}
}

func (l *Logger) Debug(_ context.Context, msg string, kvs ...KV) {
	l.base.Debug(msg, toFields(kvs)...)
}

func (l *Logger) Info(_ context.Context, msg string, kvs ...KV) {
	l.base.Info(msg, toFields(kvs)...)
}

func (l *Logger) Warn(_ context.Context, msg string, kvs ...KV) {
	l.base.Warn(msg, toFields(kvs)...)
}

// ErrorE logs msg at error level with the error attached as a field,
// matching the teacher's log.ErrorE(ctx, msg, err, kvs...) shape.
func (l *Logger) ErrorE(_ context.Context, msg string, err error, kvs ...KV) {
	fields := append([]zap.Field{zap.Error(err)}, toFields(kvs)...)
	l.base.Error(msg, fields...)
}

// FatalE logs at fatal level and terminates the process, matching the
// teacher's log.FatalE usage for unrecoverable startup failures.
func (l *Logger) FatalE(_ context.Context, msg string, err error, kvs ...KV) {
	fields := append([]zap.Field{zap.Error(err)}, toFields(kvs)...)
	l.base.Fatal(msg, fields...)
}

// FeedbackInfo logs a user-facing CLI message, separate from internal
// diagnostics (teacher's cli/start.go FeedbackInfo usage).
func (l *Logger) FeedbackInfo(_ context.Context, msg string, kvs ...KV) {
	l.base.Info(msg, toFields(kvs)...)
}

// FeedbackFatalE logs a user-facing fatal CLI error and exits.
func (l *Logger) FeedbackFatalE(ctx context.Context, msg string, err error, kvs ...KV) {
	l.FatalE(ctx, msg, err, kvs...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
