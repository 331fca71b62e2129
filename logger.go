package csrgo

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/csrgo/metainfo"
)

// Logger wraps slog.Logger with dataset-specific field names.
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
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON-formatted logs to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that writes human-readable text logs to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithSource tags the logger with the ingestion source kind.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", source),
	}
}

// LogIngest logs the outcome of an ingestion pass. The source kind is
// expected to be attached with WithSource.
func (l *Logger) LogIngest(info *metainfo.Info, rows int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("ingest failed",
			"rows_so_far", rows,
			"error", err,
		)
		return
	}
	l.Debug("ingest completed",
		"rows", info.NumRow,
		"cols", info.NumCol,
		"nonzero", info.NumNonzero,
		"elapsed", elapsed,
	)
}

// LogSave logs a binary save.
func (l *Logger) LogSave(bytes int64, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("save failed",
			"bytes_written", bytes,
			"error", err,
		)
		return
	}
	l.Debug("save completed",
		"bytes", bytes,
		"elapsed", elapsed,
	)
}

// LogLoad logs a binary load.
func (l *Logger) LogLoad(bytes int64, rows int, elapsed time.Duration, err error) {
	if err != nil {
		l.Error("load failed",
			"bytes_read", bytes,
			"error", err,
		)
		return
	}
	l.Debug("load completed",
		"bytes", bytes,
		"rows", rows,
		"elapsed", elapsed,
	)
}
