// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package logging provides structured logging for the coordinator.
package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
	"unicode"
)

// Logger is the interface used throughout the coordinator for structured
// logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// slogLogger wraps slog.Logger to implement Logger.
type slogLogger struct {
	logger *slog.Logger
}

// NewLogger creates a new logger with the specified configuration.
func NewLogger(config *Config) Logger {
	if config == nil {
		config = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level: config.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	logger := slog.New(handler).With(
		"service", "movableq-coordinator",
		"version", config.Version,
	)

	return &slogLogger{logger: logger}
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	attrs := make([]any, 0, 4)

	if requestID := ctx.Value(ctxKeyRequestID); requestID != nil {
		attrs = append(attrs, "request_id", requestID)
	}
	if workerName := ctx.Value(ctxKeyWorker); workerName != nil {
		attrs = append(attrs, "worker", workerName)
	}

	if len(attrs) > 0 {
		return l.With(attrs...)
	}
	return l
}

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyWorker    ctxKey = "worker"
)

// WithRequestID returns a context carrying a request id for WithContext to
// pick up in subsequent logging.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// Config holds logger configuration.
type Config struct {
	Level   slog.Level
	Format  Format
	Output  *os.File
	Version string
}

// Format represents the log output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// DefaultConfig returns a default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:   slog.LevelInfo,
		Format:  FormatText,
		Output:  os.Stdout,
		Version: "unknown",
	}
}

// sanitizeLogValue strips control characters from attacker-controlled
// strings (worker names, IPs, notes) before they reach the log handler.
// lgtm[go/log-injection] This function sanitizes log values by removing control characters
func sanitizeLogValue(value any) any {
	str, ok := value.(string)
	if !ok {
		return value
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, str)
}

// lgtm[go/log-injection] This function sanitizes log fields by applying sanitizeLogValue to each field
func sanitizeFields(fields []any) []any {
	sanitized := make([]any, len(fields))
	for i, field := range fields {
		sanitized[i] = sanitizeLogValue(field)
	}
	return sanitized
}

// LogOperation returns a logger tagged with the calling coordinator
// operation, with caller-supplied fields sanitized against log injection.
func LogOperation(logger Logger, operation string, fields ...any) Logger {
	_, file, line, _ := runtime.Caller(1)

	base := []any{
		"operation", operation,
		"caller", fmt.Sprintf("%s:%d", file, line),
	}
	return logger.With(append(base, sanitizeFields(fields)...)...)
}

// LogDuration logs how long an operation took.
func LogDuration(logger Logger, start time.Time, operation string) {
	duration := time.Since(start)
	logger.Info("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogError logs an error with context, sanitizing caller-supplied fields.
func LogError(logger Logger, err error, operation string, fields ...any) {
	if err == nil {
		return
	}
	base := []any{
		"operation", operation,
		"error", err.Error(),
		"error_type", getErrorType(err),
	}
	// lgtm[go/log-injection] Fields are sanitized via sanitizeFields() which removes control characters
	logger.Error("operation failed", append(base, sanitizeFields(fields)...)...)
}

func getErrorType(err error) string {
	if err == nil {
		return ""
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return "PathError"
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return "LinkError"
	}
	var syscallErr *os.SyscallError
	if errors.As(err, &syscallErr) {
		return "SyscallError"
	}
	return fmt.Sprintf("%T", err)
}

// NoOpLogger discards all log messages; useful in tests.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...any)          {}
func (NoOpLogger) Info(msg string, args ...any)           {}
func (NoOpLogger) Warn(msg string, args ...any)           {}
func (NoOpLogger) Error(msg string, args ...any)          {}
func (NoOpLogger) With(args ...any) Logger                { return NoOpLogger{} }
func (NoOpLogger) WithContext(ctx context.Context) Logger { return NoOpLogger{} }

// DefaultLogger is a package-level logger for convenience.
var DefaultLogger = NewLogger(DefaultConfig())

// SetDefaultLogger sets the package-level default logger.
func SetDefaultLogger(logger Logger) {
	DefaultLogger = logger
}
