package logger

import (
	"context"
	"log/slog"
)

func (log *SlogLogger) Error(msg string, fields ...any) {
	log.logWithContext(context.Background(), slog.LevelError, msg, fields...)
}

func (log *SlogLogger) ErrorWithContext(ctx context.Context, msg string, fields ...any) {
	log.logWithContext(ctx, slog.LevelError, msg, fields...)
}

func (log *SlogLogger) Warn(msg string, fields ...any) {
	log.logWithContext(context.Background(), slog.LevelWarn, msg, fields...)
}

func (log *SlogLogger) WarnWithContext(ctx context.Context, msg string, fields ...any) {
	log.logWithContext(ctx, slog.LevelWarn, msg, fields...)
}

func (log *SlogLogger) Info(msg string, fields ...any) {
	log.logWithContext(context.Background(), slog.LevelInfo, msg, fields...)
}

func (log *SlogLogger) InfoWithContext(ctx context.Context, msg string, fields ...any) {
	log.logWithContext(ctx, slog.LevelInfo, msg, fields...)
}

func (log *SlogLogger) Debug(msg string, fields ...any) {
	log.logWithContext(context.Background(), slog.LevelDebug, msg, fields...)
}

func (log *SlogLogger) DebugWithContext(ctx context.Context, msg string, fields ...any) {
	log.logWithContext(ctx, slog.LevelDebug, msg, fields...)
}
