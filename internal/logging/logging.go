// Package logging provides structured logging using Go's slog package.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// InvocationIDKey is the context key for invocation ids.
	InvocationIDKey ContextKey = "invocation_id"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger

	output io.Writer = os.Stderr
	level            = LevelInfo
	format           = FormatJSON
)

func init() {
	// Initialize with a default logger (JSON format, Info level)
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// ParseLevel maps a config or flag value to a Level. Unknown values are Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat maps a config or flag value to a Format. Unknown values are JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "text") {
		return FormatText
	}
	return FormatJSON
}

// InitLogger initializes the global logger with the specified level and format.
// Logs go to stderr; stdout is reserved for rendered trees.
func InitLogger(l Level, f Format) {
	level, format = l, f

	var slogLevel slog.Level
	switch l {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if f == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// SetOutput redirects log output and rebuilds the logger with the current
// level and format.
func SetOutput(w io.Writer) {
	output = w
	InitLogger(level, format)
}

// WithInvocationID adds an invocation id to the context.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, InvocationIDKey, id)
}

// GetInvocationID retrieves the invocation id from the context.
func GetInvocationID(ctx context.Context) string {
	if id, ok := ctx.Value(InvocationIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if id := GetInvocationID(ctx); id != "" {
		logger = logger.With("invocation_id", id)
	}
	return logger
}

// Helper functions for common logging patterns

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// SelectorResolved logs a finished selector resolution.
func SelectorResolved(selector string, matches, markers int, args ...any) {
	allArgs := []any{
		"selector", selector,
		"matches", matches,
		"markers", markers,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("selector_resolved", allArgs...)
}

// EnchantmentRefresh logs an enchant or disenchant pass.
func EnchantmentRefresh(id, event string, wrappers int, args ...any) {
	allArgs := []any{
		"enchantment_id", id,
		"event", event,
		"wrappers", wrappers,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("enchantment_refresh", allArgs...)
}

// Fault logs an internal consistency fault, with the invocation id from
// ctx when there is one.
func Fault(ctx context.Context, op string, err error, args ...any) {
	allArgs := []any{
		"op", op,
		"error", err.Error(),
	}
	allArgs = append(allArgs, args...)
	ErrorContext(ctx, "internal_fault", allArgs...)
}

// StoryLoaded logs a loaded story archive.
func StoryLoaded(path string, passages int, args ...any) {
	allArgs := []any{
		"path", path,
		"passages", passages,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("story_loaded", allArgs...)
}
