package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	auth "github.com/newsshelf/shelf-auth"
)

func initLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// slogLogger adapts slog to the printf style auth.Logger
type slogLogger struct {
	l *slog.Logger
}

var _ auth.Logger = slogLogger{}

func newLogger(l *slog.Logger, name string) slogLogger {
	return slogLogger{l: l.With("logger", name)}
}

func (s slogLogger) log(level slog.Level, format string, args ...any) {
	if !s.l.Enabled(context.Background(), level) {
		return
	}
	s.l.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (s slogLogger) Debug(format string, args ...any) { s.log(slog.LevelDebug, format, args...) }
func (s slogLogger) Info(format string, args ...any)  { s.log(slog.LevelInfo, format, args...) }
func (s slogLogger) Warn(format string, args ...any)  { s.log(slog.LevelWarn, format, args...) }
func (s slogLogger) Error(format string, args ...any) { s.log(slog.LevelError, format, args...) }
