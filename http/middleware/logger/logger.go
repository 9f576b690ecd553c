package logger_middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortlink-org/bank-saga/logger"
)

type chilogger struct {
	log logger.Logger
}

// Logger logs every request to the monitoring endpoints and recovers panics.
// Probe traffic (2xx on /live and /ready) is logged at debug level.
func Logger(log logger.Logger) func(next http.Handler) http.Handler {
	return chilogger{log: log}.middleware
}

func (c chilogger) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			if rec := recover(); rec != nil {
				c.log.ErrorWithContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

				return
			}

			status := ww.Status()
			fields := []any{
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("took_ms", time.Since(start).Milliseconds()),
				slog.String("remote", r.RemoteAddr),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}

			if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.HasTraceID() {
				fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
			}

			switch {
			case status >= http.StatusInternalServerError:
				c.log.ErrorWithContext(r.Context(), "request completed", fields...)
			case status >= http.StatusBadRequest:
				c.log.WarnWithContext(r.Context(), "request completed", fields...)
			case r.URL.Path == "/live" || r.URL.Path == "/ready":
				c.log.DebugWithContext(r.Context(), "request completed", fields...)
			default:
				c.log.InfoWithContext(r.Context(), "request completed", fields...)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
