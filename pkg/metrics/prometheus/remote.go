package prometheus

import (
	"time"

	"github.com/marmos91/ftpbridge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// remoteMetrics is the Prometheus implementation of metrics.RemoteMetrics.
type remoteMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewRemoteMetrics creates a Prometheus-backed RemoteMetrics. backend
// becomes a constant label ("hdfs", "s3", "badger", "afero").
func NewRemoteMetrics(backend string) metrics.RemoteMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopRemoteMetrics()
	}

	reg := metrics.GetRegistry()
	labels := prometheus.Labels{"backend": backend}

	return &remoteMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   metrics.Namespace,
				Name:        "remote_operations_total",
				Help:        "Total number of remote store calls by operation and status",
				ConstLabels: labels,
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   metrics.Namespace,
				Name:        "remote_operation_duration_seconds",
				Help:        "Duration of remote store calls in seconds",
				Buckets:     durationBuckets,
				ConstLabels: labels,
			},
			[]string{"operation"},
		),
	}
}

func (m *remoteMetrics) ObserveRemote(op string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(op, statusOf(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}
