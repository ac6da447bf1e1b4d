// Package logger wraps log/slog with the field conventions the rest of
// nfs4d uses to describe a request: trace id, procedure name, filehandle,
// client address. It does not pull in a third-party logging library; the
// teacher stack does the same (structured logging on top of slog, with its
// own thin formatting layer) rather than reaching for zap or zerolog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level mirrors slog.Level with the names used in configuration files and
// command-line flags.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) slogLevel() slog.Level {
	switch strings.ToLower(string(l)) {
	case string(LevelDebug):
		return slog.LevelDebug
	case string(LevelWarn):
		return slog.LevelWarn
	case string(LevelError):
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Format selects the rendering of log records.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config controls the global logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

var (
	mu       sync.Mutex
	current  atomic.Pointer[slog.Logger]
	colorOut atomic.Bool
)

func init() {
	Init(Config{Level: LevelInfo, Format: FormatText, Output: os.Stderr})
}

// Init (re)configures the global logger. Safe to call more than once, for
// example after parsing command-line flags.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	if f, ok := out.(*os.File); ok && cfg.Format != FormatJSON {
		colorOut.Store(isTerminal(f))
	} else {
		colorOut.Store(false)
	}

	current.Store(slog.New(handler))
}

// Get returns the current global logger.
func Get() *slog.Logger {
	return current.Load()
}

// isTerminal is a minimal TTY check. Init stores its result in colorOut;
// nothing reads colorOut, so text output carries no ANSI color either way.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// FromContext returns the logger enriched with fields carried on ctx by
// WithContext, falling back to the global logger.
func FromContext(ctx context.Context) *slog.Logger {
	l := Get()
	lc, ok := ctx.Value(logCtxKey{}).(*LogContext)
	if !ok || lc == nil {
		return l
	}
	return l.With(lc.slogArgs()...)
}

// formatDurationMs renders a duration in fractional milliseconds, matching
// the KeyDurationMs convention used across request-completion log lines.
func formatDurationMs(nanos int64) string {
	return fmt.Sprintf("%.3f", float64(nanos)/1e6)
}
