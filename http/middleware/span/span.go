package span_middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader carries the request's trace id back to the caller.
const TraceIDHeader = "trace_id"

type span struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Span opens a server span per request, continuing a trace from the request
// headers, and echoes its trace id in TraceIDHeader.
func Span(tp trace.TracerProvider, propagator propagation.TextMapPropagator) func(next http.Handler) http.Handler {
	return span{tracer: tp.Tracer("bank/http"), propagator: propagator}.middleware
}

func (s span) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := s.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, sp := s.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer sp.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		if sc := sp.SpanContext(); sc.HasTraceID() && ww.Header().Get(TraceIDHeader) == "" {
			ww.Header().Set(TraceIDHeader, sc.TraceID().String())
		}

		next.ServeHTTP(ww, r.WithContext(ctx))

		sp.SetAttributes(attribute.Int("http.response.status_code", ww.Status()))

		if ww.Status() >= http.StatusInternalServerError {
			sp.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}
