package grid

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with grid-specific helpers so conventions log
// with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithConvention tags every record with the convention name.
func (l *Logger) WithConvention(name string) *Logger {
	return &Logger{Logger: l.Logger.With("convention", name)}
}

// LogIndexBuilt logs the completion of a spatial index build.
func (l *Logger) LogIndexBuilt(items, skipped int, elapsed time.Duration) {
	l.Debug("spatial index built",
		"items", items,
		"missing_polygons", skipped,
		"elapsed", elapsed,
	)
}

// LogClipMask logs the outcome of clip mask generation.
func (l *Logger) LogClipMask(intersecting, retained uint64, buffer int) {
	l.Info("clip mask created",
		"intersecting", intersecting,
		"retained", retained,
		"buffer", buffer,
	)
}

// LogApply logs a clip mask application.
func (l *Logger) LogApply(kind GridKind, before, after int, scratch bool) {
	l.Debug("clip mask applied",
		"grid_kind", string(kind),
		"before", before,
		"after", after,
		"scratch", scratch,
	)
}
