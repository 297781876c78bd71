package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the structured logger used throughout the broker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn, error.
	Level string
	// Format selects the encoding: json (default) or text.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource annotates entries with the emitting file and line.
	AddSource bool
}

// DefaultConfig is JSON to stderr at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// levelNames maps config strings to slog levels. "warning" is accepted
// as an alias.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// globalLevel backs every handler built by New, so SetLevel takes
// effect on loggers created before the call.
var globalLevel = new(slog.LevelVar)

// New builds a logger from cfg. Credential-bearing attributes are
// redacted before encoding regardless of format.
func New(cfg Config) (Logger, error) {
	globalLevel.Set(parseLevel(cfg.Level))
	return &ctxLogger{
		logger: slog.New(newHandler(cfg)),
		ctx:    context.Background(),
	}, nil
}

func newHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     globalLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if f := strings.ToLower(cfg.Format); f == "text" || f == "console" {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// SetLevel adjusts the minimum level of every logger at runtime, for
// config reloads. Unknown names fall back to info.
func SetLevel(level string) {
	globalLevel.Set(parseLevel(level))
}

// GetLevel reports the current minimum level as a config string.
func GetLevel() string {
	l := globalLevel.Level()
	for name, lvl := range levelNames {
		if lvl == l && name != "warning" {
			return name
		}
	}
	return "info"
}

func parseLevel(level string) slog.Level {
	if l, ok := levelNames[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// ctxLogger pairs a slog.Logger with a context so cancellation-aware
// handlers see the request context.
type ctxLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func (l *ctxLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *ctxLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *ctxLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *ctxLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *ctxLogger) With(args ...any) Logger {
	return &ctxLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *ctxLogger) WithContext(ctx context.Context) Logger {
	return &ctxLogger{logger: l.logger, ctx: ctx}
}

// defaultLogger serves packages without an injected logger.
var defaultLogger atomic.Pointer[ctxLogger]

func init() {
	l, _ := New(DefaultConfig())
	defaultLogger.Store(l.(*ctxLogger))
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l Logger) {
	if cl, ok := l.(*ctxLogger); ok {
		defaultLogger.Store(cl)
	}
}

// Default returns the process-wide default logger.
func Default() Logger {
	return defaultLogger.Load()
}

// Debug logs at debug level on the default logger.
func Debug(msg string, args ...any) { defaultLogger.Load().Debug(msg, args...) }

// Info logs at info level on the default logger.
func Info(msg string, args ...any) { defaultLogger.Load().Info(msg, args...) }

// Warn logs at warn level on the default logger.
func Warn(msg string, args ...any) { defaultLogger.Load().Warn(msg, args...) }

// Error logs at error level on the default logger.
func Error(msg string, args ...any) { defaultLogger.Load().Error(msg, args...) }
