package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics observes requests served on the key space.
type HTTPMetrics interface {
	// RecordRequest records a completed request.
	RecordRequest(method string, status int, duration time.Duration, bytesWritten int64)
}

type noopHTTPMetrics struct{}

func (noopHTTPMetrics) RecordRequest(string, int, time.Duration, int64) {}

type httpMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseBytes   *prometheus.CounterVec
}

// NewHTTPMetrics registers the HTTP metrics with reg. A nil reg returns a
// no-op implementation.
func NewHTTPMetrics(reg *prometheus.Registry) HTTPMetrics {
	if reg == nil {
		return noopHTTPMetrics{}
	}

	return &httpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2kv_http_requests_total",
				Help: "Total number of HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "h2kv_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		responseBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2kv_http_response_bytes_total",
				Help: "Total bytes written in HTTP response bodies",
			},
			[]string{"method"},
		),
	}
}

func (m *httpMetrics) RecordRequest(method string, status int, duration time.Duration, bytesWritten int64) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
	m.responseBytes.WithLabelValues(method).Add(float64(bytesWritten))
}
