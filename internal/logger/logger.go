// Package logger configures the process-wide slog logger and carries a request scoped logger in the context.
//
// In dev/test the output is coloured text (lmittmann/tint); in staging/prod it is JSON.
// PINs, private keys and tokens must never be passed to the logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LevelNone disables logging
const LevelNone = slog.Level(100)

// ParseLogLevel converts a LOG_LEVEL value to a slog.Level. Unknown values default to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "off":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

// InitLogger creates the application logger and installs it as the slog default.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	return initLogger(os.Stdout, level, environment)
}

func initLogger(w io.Writer, level slog.Level, environment string) *slog.Logger {
	var handler slog.Handler

	switch {
	case level >= LevelNone:
		handler = slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})
	case environment == "prod" || environment == "staging":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

type loggerKey struct{}
type attrsKey struct{}

// requestAttrs collects attributes added while a request is handled.
// They are emitted on the final request log line.
type requestAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextWithLogger returns a copy of ctx carrying l and an empty attribute collector
func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, loggerKey{}, l)
	return context.WithValue(ctx, attrsKey{}, &requestAttrs{})
}

// ContextRequestLogger returns the request scoped logger, or the default logger when none is set
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ContextWithLogAttrs adds attributes to the final log line of the current request.
// It is a no-op outside a request handled by the RequestLogging middleware.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	ra, ok := ctx.Value(attrsKey{}).(*requestAttrs)
	if !ok {
		return
	}
	ra.mu.Lock()
	ra.attrs = append(ra.attrs, attrs...)
	ra.mu.Unlock()
}

// contextLogAttrs returns the attributes collected for the current request
func contextLogAttrs(ctx context.Context) []slog.Attr {
	ra, ok := ctx.Value(attrsKey{}).(*requestAttrs)
	if !ok {
		return nil
	}
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return append([]slog.Attr(nil), ra.attrs...)
}
