// Package metrics provides Prometheus metrics for the HTTP surface and the
// sync engine.
//
// All metrics are optional. Constructors given a nil registry return no-op
// implementations, so components never check whether metrics are enabled.
//
//	metrics.InitRegistry()
//	httpMetrics := metrics.NewHTTPMetrics(metrics.GetRegistry())
//	syncMetrics := metrics.NewSyncMetrics(nil) // no-op
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global registry with the Go runtime and
// process collectors. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = NewRegistry()
	})
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// GetRegistry returns the global registry, or nil when InitRegistry has
// not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
