package config

import (
	"strings"
	"time"
)

// boolDefaults are the booleans whose default is true. Load registers them
// with viper; GetDefaultConfig sets them directly.
var boolDefaults = map[string]bool{
	"remote.health_check":    true,
	"policy.overwrite":       true,
	"policy.chown_to_user":   true,
	"adapters.ftp.enabled":   true,
	"adapters.ftps.implicit": true,
}

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans keep their decoded value (see boolDefaults)
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyRemoteDefaults(&cfg.Remote)
	applyUsersDefaults(&cfg.Users)
	applyAdaptersDefaults(&cfg.Adapters)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyRemoteDefaults initializes the backend option maps.
func applyRemoteDefaults(cfg *RemoteConfig) {
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

// applyUsersDefaults sets credential file defaults.
func applyUsersDefaults(cfg *UsersConfig) {
	if cfg.File == "" {
		cfg.File = "users.properties"
	}
	if cfg.PasswordEncoding == "" {
		cfg.PasswordEncoding = "md5"
	}
	cfg.PasswordEncoding = strings.ToLower(cfg.PasswordEncoding)
}

// applyAdaptersDefaults sets listener defaults. Ports and passive ranges
// follow the usual bridge deployment: 2222 for FTP, 2226 for FTPS.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	applyListenerDefaults(&cfg.FTP, 2222, "2223-2225")
	applyListenerDefaults(&cfg.FTPS.FTPConfig, 2226, "2227-2229")

	if cfg.FTPS.KeyStore.Type != "" {
		cfg.FTPS.KeyStore.Type = strings.ToUpper(cfg.FTPS.KeyStore.Type)
	}
}

func applyListenerDefaults(cfg *FTPConfig, port int, passive string) {
	if cfg.Port == 0 {
		cfg.Port = port
	}
	if cfg.PassivePorts == "" {
		cfg.PassivePorts = passive
	}
	// MaxConnections defaults to 0 (unlimited)
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// The remote section points at an in-memory store so the result validates;
// real deployments override remote.uri.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Remote: RemoteConfig{
			URI:         "mem://",
			Superuser:   "admin",
			HealthCheck: true,
		},
		Policy: PolicyConfig{
			Overwrite:   true,
			ChownToUser: true,
		},
		Adapters: AdaptersConfig{
			FTP: FTPConfig{Enabled: true},
			FTPS: FTPSConfig{
				Implicit: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
