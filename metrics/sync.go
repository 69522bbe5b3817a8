package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics observes sync passes.
type SyncMetrics interface {
	// RecordPass records a finished pass. kind is "import", "full" or
	// "export".
	RecordPass(kind string, duration time.Duration, err error)
	// RecordImported records files stored by import.
	RecordImported(files int, bytes int64)
	// RecordExported records files written by export.
	RecordExported(files int, bytes int64)
	// RecordRemoved records files removed by export.
	RecordRemoved(files int)
}

type noopSyncMetrics struct{}

func (noopSyncMetrics) RecordPass(string, time.Duration, error) {}
func (noopSyncMetrics) RecordImported(int, int64)               {}
func (noopSyncMetrics) RecordExported(int, int64)               {}
func (noopSyncMetrics) RecordRemoved(int)                       {}

type syncMetrics struct {
	passesTotal  *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	filesTotal   *prometheus.CounterVec
	bytesTotal   *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics with reg. A nil reg returns a
// no-op implementation.
func NewSyncMetrics(reg *prometheus.Registry) SyncMetrics {
	if reg == nil {
		return noopSyncMetrics{}
	}

	return &syncMetrics{
		passesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2kv_sync_passes_total",
				Help: "Total number of sync passes by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		passDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "h2kv_sync_pass_duration_seconds",
				Help:    "Duration of sync passes in seconds",
				Buckets: []float64{0.01, 0.1, 1, 10, 60},
			},
			[]string{"kind"},
		),
		filesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2kv_sync_files_total",
				Help: "Total number of files moved by sync, by direction",
			},
			[]string{"direction"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2kv_sync_bytes_total",
				Help: "Total bytes moved by sync, by direction",
			},
			[]string{"direction"},
		),
	}
}

func (m *syncMetrics) RecordPass(kind string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.passesTotal.WithLabelValues(kind, status).Inc()
	m.passDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *syncMetrics) RecordImported(files int, bytes int64) {
	m.filesTotal.WithLabelValues("import").Add(float64(files))
	m.bytesTotal.WithLabelValues("import").Add(float64(bytes))
}

func (m *syncMetrics) RecordExported(files int, bytes int64) {
	m.filesTotal.WithLabelValues("export").Add(float64(files))
	m.bytesTotal.WithLabelValues("export").Add(float64(bytes))
}

func (m *syncMetrics) RecordRemoved(files int) {
	m.filesTotal.WithLabelValues("remove").Add(float64(files))
}
