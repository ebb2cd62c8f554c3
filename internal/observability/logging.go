package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// TracedLogger is a structured logger with automatic trace correlation.
// It wraps slog.Logger and adds the component name and OpenTelemetry trace
// correlation to every entry.
type TracedLogger struct {
	logger          *slog.Logger
	component       string
	redactSensitive bool
}

// NewTracedLogger creates a new TracedLogger with the specified handler.
//
// Parameters:
//   - handler: The slog.Handler to use for formatting and outputting logs
//   - component: The name of the component producing logs (e.g. "docmanager")
//
// Returns:
//   - *TracedLogger: A configured logger ready for use
func NewTracedLogger(handler slog.Handler, component string) *TracedLogger {
	return &TracedLogger{
		logger:          slog.New(handler),
		component:       component,
		redactSensitive: true,
	}
}

// With returns a TracedLogger adding args to every entry.
func (l *TracedLogger) With(args ...any) *TracedLogger {
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	return &TracedLogger{
		logger:          l.logger.With(args...),
		component:       l.component,
		redactSensitive: l.redactSensitive,
	}
}

// Debug logs a debug-level message with automatic trace correlation.
// Debug logs include all fields without redaction.
func (l *TracedLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Debug(msg, args...)
}

// Info logs an info-level message with automatic trace correlation.
// Sensitive data in args is redacted at info level and above.
func (l *TracedLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	l.WithContext(ctx).Info(msg, args...)
}

// Warn logs a warning-level message with automatic trace correlation.
func (l *TracedLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	l.WithContext(ctx).Warn(msg, args...)
}

// Error logs an error-level message with automatic trace correlation.
func (l *TracedLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	l.WithContext(ctx).Error(msg, args...)
}

// WithContext creates a new slog.Logger with trace correlation fields added.
// Extracts trace_id and span_id from the OpenTelemetry span in the context
// and adds the component to every log entry.
func (l *TracedLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.logger.With(slog.String("component", l.component))

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		logger = logger.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}

	return logger
}

// Slog returns the underlying logger tagged with the component, for
// collaborators that take a plain *slog.Logger.
func (l *TracedLogger) Slog() *slog.Logger {
	return l.logger.With(slog.String("component", l.component))
}

// NewJSONHandler creates a new JSON log handler with the specified output and level.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewTextHandler creates a new text log handler with the specified output and level.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// ParseLevel converts a configured level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewHandler builds the handler described by cfg, writing to w.
func NewHandler(cfg LoggingConfig, w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Format, "json") {
		return NewJSONHandler(w, level), nil
	}
	return NewTextHandler(w, level), nil
}

// OpenOutput resolves the configured output. The returned closer is a no-op
// for stdout and stderr.
func OpenOutput(output string) (io.Writer, func() error, error) {
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr, func() error { return nil }, nil
	case "stdout":
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output %s: %w", output, err)
	}
	return f, f.Close, nil
}

// sensitiveFields are replaced with "[REDACTED]".
var sensitiveFields = map[string]bool{
	"secret":     true,
	"password":   true,
	"token":      true,
	"credential": true,
	"apikey":     true,
	"secretkey":  true,
	"auth":       true,
}

// redactSensitiveData redacts sensitive fields in log arguments. Values of
// uri keys keep everything but the user info.
func redactSensitiveData(args []any) []any {
	if len(args)%2 != 0 {
		return args
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		normalizedKey := strings.ToLower(strings.ReplaceAll(key, "_", ""))
		switch {
		case sensitiveFields[normalizedKey]:
			redacted[i+1] = "[REDACTED]"
		case strings.HasSuffix(normalizedKey, "uri") || strings.HasSuffix(normalizedKey, "url"):
			if s, ok := args[i+1].(string); ok {
				redacted[i+1] = RedactURI(s)
			}
		}
	}

	return redacted
}

// RedactURI removes the password from a connection URI.
func RedactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}
