package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowdeploy",
		Name:      "test_total",
		Help:      "test counter",
	})

	require.NoError(t, registry.Register("deploy", "test_total", counter))

	// Duplicate registration under the same name must fail
	err := registry.Register("deploy", "test_total", counter)
	assert.Error(t, err)
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowdeploy",
		Name:      "test_gauge",
		Help:      "test gauge",
	})

	require.NoError(t, registry.Register("deploy", "test_gauge", gauge))
	assert.True(t, registry.Unregister("deploy", "test_gauge"))
	assert.False(t, registry.Unregister("deploy", "test_gauge"))

	// Re-registration after unregister must succeed
	require.NoError(t, registry.Register("deploy", "test_gauge", gauge))
}

func TestHandler(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowdeploy",
		Name:      "handler_test_total",
		Help:      "handler test counter",
	})
	require.NoError(t, registry.Register("deploy", "handler_test_total", counter))
	counter.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	registry.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flowdeploy_handler_test_total 1")
}
