package watermill

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	wmmid "github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortlink-org/bank-saga/logger"
)

// ----------- BASE MIDDLEWARE (panic, correlation, retry) ------------

func configureBaseMiddlewares(router *message.Router, log logger.Logger, wmLogger watermill.LoggerAdapter, opts Options) {
	router.AddMiddleware(wmmid.Recoverer)
	router.AddMiddleware(wmmid.CorrelationID)

	if opts.Timeout.Enabled {
		router.AddMiddleware(wmmid.Timeout(opts.Timeout.Duration))
		log.Info("Configured timeout middleware",
			slog.String("duration", opts.Timeout.Duration.String()),
		)
	}

	if opts.CircuitBreaker.Enabled {
		cb := wmmid.NewCircuitBreaker(opts.CircuitBreaker.Settings)
		router.AddMiddleware(cb.Middleware)
		log.Info("Configured circuit breaker middleware",
			slog.String("name", opts.CircuitBreaker.Settings.Name),
			slog.String("timeout", opts.CircuitBreaker.Settings.Timeout.String()),
		)
	}

	if opts.Retry.Enabled && opts.Retry.MaxRetries > 0 {
		retryMiddleware := wmmid.Retry{
			MaxRetries:          opts.Retry.MaxRetries,
			InitialInterval:     opts.Retry.InitialInterval,
			MaxInterval:         opts.Retry.MaxInterval,
			Multiplier:          opts.Retry.Multiplier,
			MaxElapsedTime:      opts.Retry.MaxElapsedTime,
			RandomizationFactor: opts.Retry.Jitter,
			Logger:              wmLogger,
		}
		router.AddMiddleware(retryMiddleware.Middleware)

		log.Info("Configured retry middleware",
			slog.Int("max_retries", opts.Retry.MaxRetries),
			slog.String("initial_interval", opts.Retry.InitialInterval.String()),
			slog.String("max_interval", opts.Retry.MaxInterval.String()),
		)
	}
}

// -------------------- METRICS MIDDLEWARE ---------------------------

// MetricsMiddleware counts and times consumed and published messages.
type MetricsMiddleware struct {
	published metric.Int64Counter
	consumed  metric.Int64Counter
	errors    metric.Int64Counter

	pubLatency metric.Float64Histogram
	conLatency metric.Float64Histogram
}

// NewMetricsMiddleware creates metrics middleware with explicit meter provider.
func NewMetricsMiddleware(log logger.Logger, provider metric.MeterProvider) (*MetricsMiddleware, error) {
	m := provider.Meter("bank/bus")

	var (
		mw  MetricsMiddleware
		err error
	)

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&mw.published, "bank_bus_messages_published_total", "Total number of messages published to topics"},
		{&mw.consumed, "bank_bus_messages_consumed_total", "Total number of messages consumed from topics"},
		{&mw.errors, "bank_bus_messages_failed_total", "Total number of failed publish or consume operations"},
	}

	for _, c := range counters {
		*c.target, err = m.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			log.Error("Failed to create counter metric", slog.String("metric", c.name), slog.String("error", err.Error()))

			return nil, err
		}
	}

	mw.pubLatency, err = m.Float64Histogram("bank_bus_publish_latency_seconds",
		metric.WithDescription("Latency of message publishing operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mw.conLatency, err = m.Float64Histogram("bank_bus_consume_latency_seconds",
		metric.WithDescription("Latency of message handling in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &mw, nil
}

// HandlerMiddleware measures consumption latency and failures per topic.
func (m *MetricsMiddleware) HandlerMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			ctx := ensureContext(msg.Context())
			topic := message.SubscribeTopicFromCtx(ctx)

			msgs, err := h(msg)
			if err != nil {
				m.errors.Add(ctx, 1, metric.WithAttributes(errorAttributes(ctx, topic, "consume", err)...))

				return msgs, err
			}

			attrs := metric.WithAttributes(topicAttributes(ctx, topic)...)
			m.consumed.Add(ctx, 1, attrs)
			m.conLatency.Record(ctx, time.Since(start).Seconds(), attrs)

			return msgs, nil
		}
	}
}

// PublisherWrapper adds tracing and metrics to publisher.
func (m *MetricsMiddleware) PublisherWrapper(pub message.Publisher, otelMW *OTelMiddleware) message.Publisher {
	return &publisherWrapper{
		pub:     pub,
		metrics: m,
		otel:    otelMW,
	}
}

type publisherWrapper struct {
	pub     message.Publisher
	metrics *MetricsMiddleware
	otel    *OTelMiddleware
}

func (pw *publisherWrapper) Close() error {
	return pw.pub.Close()
}

func (pw *publisherWrapper) Publish(topic string, msgs ...*message.Message) error {
	ctx := context.Background()
	if len(msgs) > 0 && msgs[0].Context() != nil {
		ctx = msgs[0].Context()
	}

	start := time.Now()

	var span trace.Span
	if pw.otel != nil {
		ctx, span = pw.otel.tracer.Start(ctx, "bus.publish", trace.WithAttributes(
			attribute.String("topic", topic),
		))
		defer span.End()
	}

	for _, msg := range msgs {
		InjectTrace(ctx, msg)
	}

	err := pw.pub.Publish(topic, msgs...)
	if err != nil {
		if span != nil {
			span.RecordError(err)
		}

		pw.metrics.errors.Add(ctx, 1, metric.WithAttributes(errorAttributes(ctx, topic, "publish", err)...))

		return err
	}

	attrs := metric.WithAttributes(topicAttributes(ctx, topic)...)
	pw.metrics.published.Add(ctx, int64(len(msgs)), attrs)
	pw.metrics.pubLatency.Record(ctx, time.Since(start).Seconds(), attrs)

	return nil
}

// TraceID extracts the trace id carried by ctx, for exemplars.
func TraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}

	return spanCtx.TraceID().String()
}

const metricErrorMaxLen = 128

func topicAttributes(ctx context.Context, topic string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("topic", topic)}
	if traceID := TraceID(ctx); traceID != "" {
		attrs = append(attrs, attribute.String("trace_id", traceID))
	}

	return attrs
}

func errorAttributes(ctx context.Context, topic, stage string, err error) []attribute.KeyValue {
	attrs := append(topicAttributes(ctx, topic), attribute.String("stage", stage))

	errStr := err.Error()
	if len(errStr) > metricErrorMaxLen {
		errStr = errStr[:metricErrorMaxLen]
	}

	return append(attrs, attribute.String("error", errStr))
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}

	return context.Background()
}
