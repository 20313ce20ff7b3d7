package config

import (
	"github.com/marmos91/ftpbridge/pkg/metrics"
	promMetrics "github.com/marmos91/ftpbridge/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// FTPMetrics is shared by the FTP and FTPS listeners (never nil, uses noop if disabled)
	FTPMetrics metrics.FTPMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Binds the metrics HTTP server
//   - Creates Prometheus-backed metrics instances
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// InitializeMetrics must run before CreateRemoteClient so the remote client
// is instrumented.
func InitializeMetrics(cfg *Config) (*MetricsResult, error) {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server:     nil,
			FTPMetrics: metrics.NewNoopFTPMetrics(),
		}, nil
	}

	metrics.InitRegistry()

	server, err := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})
	if err != nil {
		return nil, err
	}

	return &MetricsResult{
		Server:     server,
		FTPMetrics: promMetrics.NewFTPMetrics(),
	}, nil
}
