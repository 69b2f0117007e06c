// Package logger is a context-aware facade over zap. The transport layer
// stores a trace id in the context and every log line carries it.
package logger

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

var (
	global   *zap.Logger = zap.NewNop()
	initOnce sync.Once
)

func Init(level string, asJSON bool) {
	initOnce.Do(func() {
		encoderCfg := zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}

		var encoder zapcore.Encoder
		if asJSON {
			encoder = zapcore.NewJSONEncoder(encoderCfg)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderCfg)
		}

		core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), parseLevel(level))
		global = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	})
}

func SetNop() {
	global = zap.NewNop()
}

func Sync() error {
	return global.Sync()
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if value, found := ctx.Value(traceIDKey).(string); found {
		return value
	}
	return ""
}

func Debug(ctx context.Context, message string, fields ...zap.Field) {
	global.Debug(message, withTrace(ctx, fields)...)
}

func Info(ctx context.Context, message string, fields ...zap.Field) {
	global.Info(message, withTrace(ctx, fields)...)
}

func Warn(ctx context.Context, message string, fields ...zap.Field) {
	global.Warn(message, withTrace(ctx, fields)...)
}

func Error(ctx context.Context, message string, fields ...zap.Field) {
	global.Error(message, withTrace(ctx, fields)...)
}

func Fatal(ctx context.Context, message string, fields ...zap.Field) {
	global.Fatal(message, withTrace(ctx, fields)...)
}

func withTrace(ctx context.Context, fields []zap.Field) []zap.Field {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return append([]zap.Field{zap.String(string(traceIDKey), traceID)}, fields...)
	}
	return fields
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
