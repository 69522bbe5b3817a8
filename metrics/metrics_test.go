package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2kv/h2kv/metrics"
)

func TestNoop(t *testing.T) {
	httpMetrics := metrics.NewHTTPMetrics(nil)
	syncMetrics := metrics.NewSyncMetrics(nil)

	assert.NotPanics(t, func() {
		httpMetrics.RecordRequest(http.MethodGet, http.StatusOK, time.Millisecond, 10)
		syncMetrics.RecordPass("full", time.Second, nil)
		syncMetrics.RecordImported(1, 10)
		syncMetrics.RecordExported(1, 10)
		syncMetrics.RecordRemoved(1)
	})
}

// counterValues gathers reg and returns the counters of family keyed by
// their joined label values.
func counterValues(t *testing.T, reg *prometheus.Registry, family string) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, f := range families {
		if f.GetName() != family {
			continue
		}
		for _, m := range f.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetValue())
			}
			out[strings.Join(labels, ",")] = m.GetCounter().GetValue()
		}
	}
	return out
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTPMetrics(reg)

	m.RecordRequest(http.MethodGet, http.StatusOK, 5*time.Millisecond, 128)
	m.RecordRequest(http.MethodGet, http.StatusNotFound, time.Millisecond, 0)
	m.RecordRequest(http.MethodPut, http.StatusCreated, time.Millisecond, 0)

	assert.Equal(t, map[string]float64{
		"GET,200": 1,
		"GET,404": 1,
		"PUT,201": 1,
	}, counterValues(t, reg, "h2kv_http_requests_total"))

	assert.Equal(t, map[string]float64{
		"GET": 128,
		"PUT": 0,
	}, counterValues(t, reg, "h2kv_http_response_bytes_total"))
}

func TestSyncMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSyncMetrics(reg)

	m.RecordPass("full", time.Second, nil)
	m.RecordPass("full", time.Second, errors.New("boom"))
	m.RecordImported(3, 300)
	m.RecordExported(1, 10)
	m.RecordRemoved(2)

	assert.Equal(t, map[string]float64{
		"export": 1,
		"import": 3,
		"remove": 2,
	}, counterValues(t, reg, "h2kv_sync_files_total"))

	assert.Equal(t, map[string]float64{
		"full,error":   1,
		"full,success": 1,
	}, counterValues(t, reg, "h2kv_sync_passes_total"))
}

func TestServer_Handler(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		reg := metrics.NewRegistry()
		metrics.NewHTTPMetrics(reg).RecordRequest(http.MethodGet, http.StatusOK, time.Millisecond, 1)

		srv := metrics.NewServer("127.0.0.1:0", reg)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "h2kv_http_requests_total")
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})

	t.Run("disabled", func(t *testing.T) {
		srv := metrics.NewServer("127.0.0.1:0", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
