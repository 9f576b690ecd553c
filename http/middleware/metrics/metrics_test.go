package metrics_middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metrics_middleware "github.com/shortlink-org/bank-saga/http/middleware/metrics"
)

func TestMetricsLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()

	mw, err := metrics_middleware.NewMetrics(reg)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(mw)
	r.Get("/debug/pprof/*", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	for _, path := range []string{"/debug/pprof/heap", "/debug/pprof/goroutine", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "http_requests_total"))

	expected := `
# HELP http_requests_total Total number of HTTP requests made.
# TYPE http_requests_total counter
http_requests_total{method="GET",path="/debug/pprof/*",status="200"} 2
http_requests_total{method="GET",path="unmatched",status="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))
}

func TestMetricsRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := metrics_middleware.NewMetrics(reg)
	require.NoError(t, err)

	_, err = metrics_middleware.NewMetrics(reg)
	require.Error(t, err)
}
