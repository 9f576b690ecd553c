/*
Package metrics serves the bank's operational endpoints: Prometheus metrics
on /metrics, liveness on /live and readiness on /ready.

Meters created from Monitoring.Metrics are exported through the same
Prometheus registry, so watermill and saga instruments show up on /metrics
next to the Go runtime collectors.
*/
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promExporter "go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortlink-org/bank-saga/config"
	logger_middleware "github.com/shortlink-org/bank-saga/http/middleware/logger"
	metrics_middleware "github.com/shortlink-org/bank-saga/http/middleware/metrics"
	span_middleware "github.com/shortlink-org/bank-saga/http/middleware/span"
	httpserver "github.com/shortlink-org/bank-saga/http/server"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/observability/profiling"
)

type Monitoring struct {
	Handler    *chi.Mux
	Prometheus *prometheus.Registry
	Metrics    *api.MeterProvider
	Health     healthcheck.Handler

	log    logger.Logger
	server *http.Server
	cfg    *config.Config
}

// New builds the meter provider and the endpoint mux. Nothing listens until Serve.
func New(ctx context.Context, log logger.Logger, cfg *config.Config, res *resource.Resource, tracer trace.TracerProvider) (*Monitoring, error) {
	cfg.SetDefault("METRICS_ADDR", ":9090")
	cfg.SetDefault("METRICS_TIMEOUT", "30s")
	cfg.SetDefault("METRICS_NAMESPACE", "bank")
	cfg.SetDefault("OTEL_METRIC_SHUTDOWN_TIMEOUT", "10s")

	monitoring := &Monitoring{log: log, cfg: cfg}

	if err := monitoring.setPrometheus(); err != nil {
		return nil, err
	}

	if err := monitoring.setMetrics(res); err != nil {
		return nil, err
	}

	if err := monitoring.setHandler(log, tracer, cfg.GetString("METRICS_NAMESPACE")); err != nil {
		return nil, err
	}

	if profiling.Register(monitoring.Handler, cfg) {
		log.Info("profiling endpoints mounted", slog.String("path", "/debug/pprof/"))
	}

	monitoring.server = httpserver.New(ctx, monitoring.Handler, httpserver.Config{
		Addr:    cfg.GetString("METRICS_ADDR"),
		Timeout: cfg.GetDuration("METRICS_TIMEOUT"),
	}, cfg)

	return monitoring, nil
}

// AddReadinessCheck gates /ready on check.
func (m *Monitoring) AddReadinessCheck(name string, check healthcheck.Check) {
	m.Health.AddReadinessCheck(name, check)
}

// Serve listens on METRICS_ADDR until ctx is done.
func (m *Monitoring) Serve(ctx context.Context) error {
	m.log.InfoWithContext(ctx, "monitoring listening", slog.String("addr", m.server.Addr))

	return httpserver.Serve(ctx, m.server, m.cfg.GetDuration("OTEL_METRIC_SHUTDOWN_TIMEOUT"))
}

// Shutdown flushes the meter provider.
func (m *Monitoring) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.GetDuration("OTEL_METRIC_SHUTDOWN_TIMEOUT"))
	defer cancel()

	return m.Metrics.Shutdown(ctx)
}

func (m *Monitoring) setMetrics(res *resource.Resource) error {
	prometheusReader, err := promExporter.New(
		promExporter.WithRegisterer(m.Prometheus),
	)
	if err != nil {
		return err
	}

	m.Metrics = api.NewMeterProvider(
		api.WithResource(res),
		api.WithReader(prometheusReader),
		api.WithExemplarFilter(exemplar.TraceBasedFilter),
	)

	otel.SetMeterProvider(m.Metrics)

	return nil
}

func (m *Monitoring) setHandler(log logger.Logger, tracer trace.TracerProvider, namespace string) error {
	requests, err := metrics_middleware.NewMetrics(m.Prometheus)
	if err != nil {
		return err
	}

	m.Handler = chi.NewRouter()
	m.Handler.Use(span_middleware.Span(tracer, otel.GetTextMapPropagator()), logger_middleware.Logger(log), requests)

	m.Handler.Handle("/metrics", promhttp.HandlerFor(
		m.Prometheus,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,

			ErrorHandling: promhttp.ContinueOnError,
		},
	))

	// Health check metrics are prefixed with namespace.
	m.Health = healthcheck.NewMetricsHandler(m.Prometheus, namespace)

	m.Handler.Get("/live", m.Health.LiveEndpoint)
	m.Handler.Get("/ready", m.Health.ReadyEndpoint)

	return nil
}

func (m *Monitoring) setPrometheus() error {
	m.Prometheus = prometheus.NewRegistry()

	for _, c := range []prometheus.Collector{
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.Prometheus.Register(c); err != nil {
			return err
		}
	}

	return nil
}
