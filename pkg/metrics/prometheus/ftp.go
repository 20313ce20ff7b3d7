// Package prometheus holds the Prometheus implementations of the metrics
// interfaces. Constructors fall back to no-op implementations when the
// registry has not been initialized.
package prometheus

import (
	"errors"
	"io/fs"
	"time"

	"github.com/marmos91/ftpbridge/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// durationBuckets covers metadata calls (milliseconds) up to long transfers.
var durationBuckets = []float64{
	0.001, // 1ms
	0.01,  // 10ms
	0.1,   // 100ms
	0.5,   // 500ms
	1,     // 1s
	5,     // 5s
	30,    // 30s
	120,   // 2min
	600,   // 10min
}

// ftpMetrics is the Prometheus implementation of metrics.FTPMetrics.
type ftpMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	authAttempts      *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	sessionsTotal     prometheus.Counter
}

// NewFTPMetrics creates a Prometheus-backed FTPMetrics.
func NewFTPMetrics() metrics.FTPMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopFTPMetrics()
	}

	reg := metrics.GetRegistry()

	return &ftpMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "ftp_operations_total",
				Help:      "Total number of FTP filesystem operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "ftp_operation_duration_seconds",
				Help:      "Duration of FTP filesystem operations in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "ftp_bytes_transferred_total",
				Help:      "Total payload bytes moved over FTP data connections",
			},
			[]string{"direction"},
		),
		authAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "ftp_auth_attempts_total",
				Help:      "Login attempts by result and failure reason",
			},
			[]string{"result", "reason"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "ftp_active_sessions",
				Help:      "Current number of authenticated FTP sessions",
			},
		),
		sessionsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "ftp_sessions_total",
				Help:      "Total number of authenticated FTP sessions",
			},
		),
	}
}

func (m *ftpMetrics) RecordOperation(op string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(op, statusOf(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *ftpMetrics) RecordBytes(direction string, bytes int64) {
	if bytes > 0 {
		m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
	}
}

func (m *ftpMetrics) RecordAuth(success bool, reason string) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.authAttempts.WithLabelValues(result, reason).Inc()
}

func (m *ftpMetrics) SessionOpened() {
	m.activeSessions.Inc()
	m.sessionsTotal.Inc()
}

func (m *ftpMetrics) SessionClosed() {
	m.activeSessions.Dec()
}

// statusOf buckets an error into a low-cardinality label.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission_denied"
	case errors.Is(err, fs.ErrExist):
		return "exists"
	default:
		return "error"
	}
}
