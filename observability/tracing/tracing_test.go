package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shortlink-org/bank-saga/config"
)

func TestNewSamplesEveryRootSpanByDefault(t *testing.T) {
	cfg := config.NewWithValues(map[string]any{"SERVICE_NAME": "bank-test"})

	res := NewResource(cfg)
	assert.Contains(t, res.Attributes(), attribute.String("service.name", "bank-test"))

	provider := New(cfg, res)
	t.Cleanup(func() { require.NoError(t, Shutdown(context.Background(), provider)) })

	_, span := otel.Tracer("test").Start(context.Background(), "approve-client")
	defer span.End()

	assert.True(t, span.SpanContext().IsSampled())
	assert.True(t, span.SpanContext().IsValid())
}
