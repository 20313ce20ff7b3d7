// Package metrics defines the observability contracts of the bridge.
//
// Metrics are optional: until InitRegistry is called every constructor in
// the prometheus subpackage hands out a no-op implementation, so components
// never check for nil.
//
// Usage:
//
//	metrics.InitRegistry()
//	ftpMetrics := prometheus.NewFTPMetrics()
//	remoteMetrics := prometheus.NewRemoteMetrics("hdfs")
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace prefixes every metric name.
const Namespace = "ftpbridge"

var (
	// registry is written once by InitRegistry and read everywhere else.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process registry with the Go runtime and process
// collectors attached. Later calls are ignored.
//
// Thread safety:
// sync.Once orders the registry write before every subsequent read.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the process registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
