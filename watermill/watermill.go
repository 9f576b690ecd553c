package watermill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
)

var errNilBackend = errors.New("watermill: backend is nil, it must be provided explicitly")

// Backend is a message transport (gochannel, Kafka, RabbitMQ).
type Backend interface {
	Publisher() message.Publisher
	Subscriber() message.Subscriber
	Close() error
}

// GroupSubscriber is implemented by backends whose subscriptions belong to a
// consumer group. Each group receives its own copy of every message.
type GroupSubscriber interface {
	SubscriberForGroup(group string) (message.Subscriber, error)
}

// Client bundles the router with the instrumented publisher and subscriber.
type Client struct {
	Router     *message.Router
	Publisher  message.Publisher
	Subscriber message.Subscriber
	backend    Backend
	log        logger.Logger
}

// New creates the router with its middleware chain, logger bridge, tracing and metrics.
// The backend is built by the caller (gochannel.New, kafka.New, rabbit.New).
func New(
	_ context.Context,
	log logger.Logger,
	cfg *config.Config,
	backend Backend,
	meterProvider metric.MeterProvider,
	tracerProvider trace.TracerProvider,
	options ...Option,
) (*Client, error) {
	if backend == nil {
		return nil, errNilBackend
	}

	wmLogger := NewWatermillLogger(log)

	optsCfg := defaultOptions(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}

		opt(&optsCfg)
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: optsCfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, err
	}

	configureBaseMiddlewares(router, log, wmLogger, optsCfg)

	otelMW := NewOTELMiddleware(tracerProvider)
	router.AddMiddleware(otelMW.HandlerMiddleware())

	metricsMW, err := NewMetricsMiddleware(log, meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}

	publisher := metricsMW.PublisherWrapper(backend.Publisher(), otelMW)

	if optsCfg.DLQ.Enabled {
		poison, err := NewPoisonMiddleware(log, publisher, optsCfg.DLQ.Topic, optsCfg.ServiceName)
		if err != nil {
			return nil, err
		}

		router.AddMiddleware(poison)
		log.Info("Configured dead-letter middleware", slog.String("topic", optsCfg.DLQ.Topic))
	}

	router.AddMiddleware(metricsMW.HandlerMiddleware())

	return &Client{
		Router:     router,
		Publisher:  publisher,
		Subscriber: backend.Subscriber(),
		backend:    backend,
		log:        log,
	}, nil
}

// SubscriberFor returns a subscriber bound to a consumer group. Backends
// without groups fan out every message to every subscription, so the shared
// subscriber is returned.
func (c *Client) SubscriberFor(group string) (message.Subscriber, error) {
	if gs, ok := c.backend.(GroupSubscriber); ok && group != "" {
		return gs.SubscriberForGroup(group)
	}

	return c.Subscriber, nil
}

// Run blocks running the router until ctx is done or the router is closed.
func (c *Client) Run(ctx context.Context) error {
	return c.Router.Run(ctx)
}

// Running is closed once every handler has subscribed.
func (c *Client) Running() chan struct{} {
	return c.Router.Running()
}

// WaitRunning waits for the router to subscribe all handlers.
func (c *Client) WaitRunning(ctx context.Context, timeout time.Duration) error {
	select {
	case <-c.Router.Running():
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("watermill: router not running after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close gracefully closes all resources and collects all errors.
func (c *Client) Close() error {
	var errs *multierror.Error

	if c.Router != nil {
		if err := c.Router.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to close router: %w", err))
		}
	}

	if c.backend != nil {
		if err := c.backend.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to close backend: %w", err))
		}
	}

	return errs.ErrorOrNil()
}
