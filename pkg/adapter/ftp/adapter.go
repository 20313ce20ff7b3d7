// Package ftp serves the bridge over FTP and FTPS.
//
// The protocol itself (control channel, data connections, PASV/EPSV, AUTH
// TLS) is handled by github.com/gonzalop/ftp/server. This package plugs a
// server.Driver into it that authenticates against the credential store
// and answers every filesystem call through vfs.View.
package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gonzalop/ftp/server"
	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/adapter"
	"github.com/marmos91/ftpbridge/pkg/metrics"
	"github.com/marmos91/ftpbridge/pkg/vfs"
)

// FTPAdapter implements adapter.Adapter for one FTP or FTPS listener.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. New logins are refused
//  3. Wait for active sessions to end (up to ShutdownTimeout or Stop's ctx)
//  4. Session contexts are cancelled, aborting in-flight remote calls
//  5. The engine closes the listener and any remaining connection
//
// Thread safety:
// All methods are safe for concurrent use; shutdown runs once.
type FTPAdapter struct {
	config Config
	driver *driver

	mu      sync.Mutex
	srv     *server.Server
	closing bool
	port    atomic.Int32

	stopOnce sync.Once
	stopped  chan struct{}
	stopErr  error
}

var _ adapter.Adapter = (*FTPAdapter)(nil)

// New creates an adapter serving view to users authenticated by auth.
// m may be nil.
func New(config Config, view *vfs.View, auth Authenticator, m metrics.FTPMetrics) (*FTPAdapter, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", config.Name, err)
	}
	if m == nil {
		m = metrics.NewNoopFTPMetrics()
	}

	minPort, maxPort, _ := ParsePassivePorts(config.PassivePorts)
	settings := &server.Settings{
		PublicHost:  config.PublicHost,
		PasvMinPort: minPort,
		PasvMaxPort: maxPort,
	}

	a := &FTPAdapter{
		config:  config,
		driver:  newDriver(config.Name, view, auth, m, settings),
		stopped: make(chan struct{}),
	}
	a.port.Store(int32(config.Port))
	return a, nil
}

// Serve binds the listener and serves until ctx is cancelled.
func (a *FTPAdapter) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create %s listener on port %d: %w", a.config.Name, a.config.Port, err)
	}
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		a.port.Store(int32(tcp.Port))
	}
	if a.config.Implicit {
		ln = tls.NewListener(ln, a.config.TLS)
	}

	opts := []server.Option{
		server.WithDriver(a.driver),
		server.WithLogger(logger.Slog().With("adapter", a.config.Name)),
		server.WithMaxIdleTime(a.config.IdleTimeout),
		server.WithMaxConnections(a.config.MaxConnections),
	}
	if a.config.TLS != nil {
		// Also needed in implicit mode: data connections are wrapped with it.
		opts = append(opts, server.WithTLS(a.config.TLS))
	}

	srv, err := server.NewServer(ln.Addr().String(), opts...)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to create %s server: %w", a.config.Name, err)
	}

	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	a.srv = srv
	a.mu.Unlock()

	logger.Info("%s server listening on port %d", a.config.Name, a.Port())
	logger.Debug("%s config: passive_ports=%q public_host=%q max_connections=%d idle_timeout=%v implicit_tls=%v",
		a.config.Name, a.config.PassivePorts, a.config.PublicHost, a.config.MaxConnections,
		a.config.IdleTimeout, a.config.Implicit)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("%s shutdown signal received: %v", a.config.Name, ctx.Err())
			stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
			defer cancel()
			_ = a.Stop(stopCtx)
		case <-a.stopped:
		}
	}()

	err = srv.Serve(ln)
	if errors.Is(err, server.ErrServerClosed) {
		<-a.stopped
		return a.stopErr
	}
	return err
}

// Stop refuses new logins, waits for active sessions until ctx is done and
// then closes everything.
func (a *FTPAdapter) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.closing = true
		srv := a.srv
		a.mu.Unlock()

		a.driver.drain()
		active := a.driver.activeSessions()
		if active > 0 {
			logger.Info("%s graceful shutdown: waiting for %d active session(s)", a.config.Name, active)
		}

		if err := a.driver.wait(ctx); err != nil {
			remaining := a.driver.activeSessions()
			logger.Warn("%s shutdown timeout exceeded: %d session(s) still active, forcing closure",
				a.config.Name, remaining)
			a.stopErr = fmt.Errorf("%s shutdown timeout: %d sessions force-closed", a.config.Name, remaining)
		}

		a.driver.cancelSessions()
		if srv != nil {
			if err := srv.Shutdown(); err != nil {
				logger.Debug("Error closing %s listener: %v", a.config.Name, err)
			}
		}

		logger.Info("%s server stopped", a.config.Name)
		close(a.stopped)
	})

	<-a.stopped
	return a.stopErr
}

// Protocol returns "FTP" or "FTPS".
func (a *FTPAdapter) Protocol() string {
	return a.config.Name
}

// Port returns the bound control port once Serve has started.
func (a *FTPAdapter) Port() int {
	return int(a.port.Load())
}

// ActiveSessions returns the number of authenticated sessions.
func (a *FTPAdapter) ActiveSessions() int32 {
	return a.driver.activeSessions()
}
