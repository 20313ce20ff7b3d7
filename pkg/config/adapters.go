package config

import (
	"fmt"

	"github.com/marmos91/ftpbridge/internal/keystore"
	"github.com/marmos91/ftpbridge/pkg/adapter"
	"github.com/marmos91/ftpbridge/pkg/adapter/ftp"
	"github.com/marmos91/ftpbridge/pkg/metrics"
	"github.com/marmos91/ftpbridge/pkg/vfs"
)

// CreateAdapters creates all enabled listeners from the configuration.
//
// Both listeners serve the same view and authenticate against the same
// store. The FTPS key material is loaded here, so a bad key store fails
// startup before anything is bound.
//
// Parameters:
//   - cfg: The complete ftpbridge configuration
//   - view: The virtual filesystem sessions are served through
//   - auth: The credential store
//   - ftpMetrics: Optional metrics collector (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, view *vfs.View, auth ftp.Authenticator, ftpMetrics metrics.FTPMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.FTP.Enabled {
		a, err := ftp.New(listenerConfig("FTP", cfg.Adapters.FTP, cfg), view, auth, ftpMetrics)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	if cfg.Adapters.FTPS.Enabled {
		ks := cfg.Adapters.FTPS.KeyStore
		tlsConfig, err := keystore.TLSConfig(keystore.Config{
			File:        ks.File,
			Type:        ks.Type,
			Password:    ks.Password,
			KeyPassword: ks.KeyPassword,
			CertFile:    ks.CertFile,
			Alias:       ks.Alias,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load FTPS key store: %w", err)
		}

		c := listenerConfig("FTPS", cfg.Adapters.FTPS.FTPConfig, cfg)
		c.TLS = tlsConfig
		c.Implicit = cfg.Adapters.FTPS.Implicit

		a, err := ftp.New(c, view, auth, ftpMetrics)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}

func listenerConfig(name string, l FTPConfig, cfg *Config) ftp.Config {
	return ftp.Config{
		Name:            name,
		Port:            l.Port,
		PassivePorts:    l.PassivePorts,
		PublicHost:      l.PublicHost,
		MaxConnections:  l.MaxConnections,
		IdleTimeout:     l.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}
