package metrics_middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type metrics struct {
	reqs    *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics counts requests and their latency per chi route pattern on reg.
func NewMetrics(reg prometheus.Registerer) (func(next http.Handler) http.Handler, error) {
	m := metrics{
		reqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests made.",
		}, []string{"status", "method", "path"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "The HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status", "method", "path"}),
	}

	if err := reg.Register(m.reqs); err != nil {
		return nil, err
	}

	if err := reg.Register(m.latency); err != nil {
		return nil, err
	}

	return m.middleware, nil
}

func (m metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		m.observe(r, start, strconv.Itoa(ww.Status()))
	})
}

func (m metrics) observe(r *http.Request, start time.Time, code string) {
	route := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.RoutePatterns) > 0 {
		route = strings.ReplaceAll(strings.Join(rctx.RoutePatterns, ""), "/*/", "/")
	}

	m.reqs.WithLabelValues(code, r.Method, route).Inc()
	observer := m.latency.WithLabelValues(code, r.Method, route)
	seconds := time.Since(start).Seconds()

	spanCtx := trace.SpanContextFromContext(r.Context())
	if spanCtx.HasTraceID() && spanCtx.IsSampled() {
		if exemplarObserver, ok := observer.(prometheus.ExemplarObserver); ok {
			exemplarObserver.ObserveWithExemplar(seconds, prometheus.Labels{"trace_id": spanCtx.TraceID().String()})

			return
		}
	}

	observer.Observe(seconds)
}
