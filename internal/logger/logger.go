// Package logger provides the process-wide structured logger.
//
// Production builds log JSON, everything else logs human-readable text.
// Request handlers should prefer WithCtx so that lines carry the request id:
//
//	log := logger.WithCtx(ctx)
//	log.Info("booking accepted", "booking_id", id)
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var L = New(os.Getenv("APP_ENV"), os.Stdout)

// New builds a logger for the given environment name.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case "production", "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// Setup replaces the package logger and makes it the slog default.
func Setup(env string) {
	L = New(env, os.Stdout)
	slog.SetDefault(L)
}

type ctxKey struct{}

// Inject stores a request-scoped logger in ctx.
func Inject(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// WithCtx returns the logger stored by Inject, or the base logger.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
			return log
		}
	}
	return L
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }

func Info(msg string, args ...any) { L.Info(msg, args...) }

func Warn(msg string, args ...any) { L.Warn(msg, args...) }

func Error(msg string, args ...any) { L.Error(msg, args...) }
