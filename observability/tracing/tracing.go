/*
Package tracing sets up the bank's tracer provider.

Spans are sampled and propagated with W3C trace context so that saga steps
and worker handlers share one trace per workflow. The provider has no
exporter; trace and span ids reach the logs through the logger's context
fields.
*/
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/shortlink-org/bank-saga/config"
)

// NewResource describes the running service.
func NewResource(cfg *config.Config) *resource.Resource {
	cfg.SetDefault("SERVICE_NAME", "bank")
	cfg.SetDefault("SERVICE_VERSION", "dev")

	return resource.NewSchemaless(
		attribute.String("service.name", cfg.GetString("SERVICE_NAME")),
		attribute.String("service.version", cfg.GetString("SERVICE_VERSION")),
	)
}

// New returns the tracer provider and installs it with its propagators as the
// global ones.
func New(cfg *config.Config, res *resource.Resource) *sdktrace.TracerProvider {
	cfg.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.GetFloat64("TRACING_SAMPLE_RATIO")))),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return provider
}

// Shutdown ends every open span of provider.
func Shutdown(ctx context.Context, provider *sdktrace.TracerProvider) error {
	return provider.Shutdown(ctx)
}
