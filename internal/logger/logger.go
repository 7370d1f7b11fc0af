package logger

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

// Initialize sets up the global logger with the specified level and format.
// Unknown levels fall back to info; format is "json" or "text".
func Initialize(level, format string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.ToLower(format) == "text" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	current.Store(zl)
	zap.ReplaceGlobals(zl)
	return nil
}

// Get returns the global logger. Before Initialize it discards everything.
func Get() *zap.Logger {
	if zl := current.Load(); zl != nil {
		return zl
	}
	return zap.NewNop()
}

// Sync flushes buffered entries.
func Sync() {
	_ = Get().Sync()
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

// Ctx returns the global logger annotated with the request id and trace id carried by ctx.
func Ctx(ctx context.Context) *zap.Logger {
	zl := Get()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		zl = zl.With(zap.String("request_id", reqID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		zl = zl.With(zap.String("trace_id", sc.TraceID().String()))
	}
	return zl
}

// WithService returns a logger with service name attached
func WithService(serviceName string) *zap.Logger {
	return Get().With(zap.String("service", serviceName))
}

// DatabaseCall logs a database operation at debug level.
func DatabaseCall(operation, query string, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("operation", operation), zap.String("query", query)}, fields...)
	Get().Debug("→ Database call", all...)
}

// DatabaseResult logs the outcome of a database operation.
func DatabaseResult(operation string, rowsAffected int64, err error, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("operation", operation), zap.Int64("rows_affected", rowsAffected)}, fields...)
	if err != nil {
		Get().Error("← Database call failed", append(all, zap.Error(err))...)
		return
	}
	Get().Debug("← Database call succeeded", all...)
}

// ExternalServiceCall logs an outbound call to another service at debug level.
func ExternalServiceCall(service, operation string, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("service", service), zap.String("operation", operation)}, fields...)
	Get().Debug("→ External service call", all...)
}

// ExternalServiceResult logs the outcome of an outbound call.
func ExternalServiceResult(service, operation string, err error, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("service", service), zap.String("operation", operation)}, fields...)
	if err != nil {
		Get().Warn("← External service call failed", append(all, zap.Error(err))...)
		return
	}
	Get().Debug("← External service call succeeded", all...)
}
