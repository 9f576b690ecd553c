package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/observability/tracing"
)

func newMonitoring(t *testing.T, values map[string]any) *Monitoring {
	t.Helper()

	cfg := config.NewWithValues(values)

	m, err := New(context.Background(), logger.NewNop(), cfg, tracing.NewResource(cfg), noop.NewTracerProvider())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, m.Shutdown(context.Background())) })

	return m
}

func get(t *testing.T, m *Monitoring, path string) (int, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	return rec.Code, string(body)
}

func TestMetricsExposeMeterInstruments(t *testing.T) {
	m := newMonitoring(t, map[string]any{})

	counter, err := m.Metrics.Meter("bank").Int64Counter("saga_completed")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	code, body := get(t, m, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "saga_completed_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestReadinessFollowsChecks(t *testing.T) {
	m := newMonitoring(t, map[string]any{})

	code, _ := get(t, m, "/ready")
	assert.Equal(t, http.StatusOK, code)

	m.AddReadinessCheck("router", func() error { return errors.New("router not running") })

	code, _ = get(t, m, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = get(t, m, "/live")
	assert.Equal(t, http.StatusOK, code)
}

func TestProfilingIsOptIn(t *testing.T) {
	off := newMonitoring(t, map[string]any{})
	code, _ := get(t, off, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)

	on := newMonitoring(t, map[string]any{"PROFILING_ENABLED": true})
	code, _ = get(t, on, "/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
}
