package logger

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shortlink-org/bank-saga/logger/tracer"
)

type SlogLogger struct {
	logger *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

func New(cfg Configuration) (*SlogLogger, error) {
	// Check config and set default values if needed
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(cfg.Writer, &slog.HandlerOptions{
		Level:     convertLevel(cfg.Level),
		AddSource: true,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format(cfg.TimeFormat))
			}

			return a
		},
	})

	return &SlogLogger{logger: slog.New(handler)}, nil
}

// NewNop returns a logger that discards everything. Handy in tests.
func NewNop() *SlogLogger {
	return &SlogLogger{logger: slog.New(slog.DiscardHandler)}
}

func (log *SlogLogger) Close() error {
	// slog.Logger doesn't have a Close method, so we just return nil
	return nil
}

// convertLevel converts our log level to slog level
func convertLevel(level int) slog.Level {
	switch level {
	case ERROR_LEVEL:
		return slog.LevelError
	case WARN_LEVEL:
		return slog.LevelWarn
	case INFO_LEVEL:
		return slog.LevelInfo
	case DEBUG_LEVEL:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func (log *SlogLogger) logWithContext(ctx context.Context, level slog.Level, msg string, fields ...any) {
	if ctx == nil {
		ctx = context.Background()
	}

	if !log.logger.Enabled(ctx, level) {
		return
	}

	fields = tracer.AppendTraceID(ctx, fields...)

	// keep the caller's frame as the record source
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(fields...)

	_ = log.logger.Handler().Handle(ctx, record)
}
