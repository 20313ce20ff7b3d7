package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/adapter"
	"github.com/marmos91/ftpbridge/pkg/metrics"
)

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("server: Serve has already been called")

// Config configures a BridgeServer.
type Config struct {
	// ShutdownTimeout bounds how long Stop waits for each adapter's sessions.
	// Zero means 30 seconds.
	ShutdownTimeout time.Duration

	// Metrics is the optional Prometheus endpoint. It is started with the
	// adapters and stopped after them.
	Metrics *metrics.Server
}

// BridgeServer manages the lifecycle of the FTP and FTPS listeners that
// expose one remote filesystem.
//
// Lifecycle:
//  1. Creation: New() with the shutdown settings
//  2. Registration: AddAdapter() for each listener
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation, or the failure of any adapter, stops
//     every adapter in reverse registration order
//
// Thread safety:
// BridgeServer is safe for concurrent use. Serve() may only be called once;
// AddAdapter() must not be called after it.
//
// Example usage:
//
//	srv := server.New(server.Config{ShutdownTimeout: 30 * time.Second})
//	for _, a := range adapters {
//	    if err := srv.AddAdapter(a); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type BridgeServer struct {
	config Config

	// mu protects adapters and served
	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a BridgeServer with no adapters.
func New(config Config) *BridgeServer {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	return &BridgeServer{
		config:   config,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter registers a listener.
//
// Returns an error if another adapter already uses the same protocol name or
// port. Port 0 (pick a free port) never conflicts.
//
// Panics if a is nil or Serve() has already been called.
func (s *BridgeServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Adapters returns a copy of the registered adapters.
func (s *BridgeServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Serve starts all registered adapters and the metrics server, and blocks
// until ctx is cancelled or one of them fails.
//
// Returns:
//   - ctx.Err() after a shutdown triggered by cancellation
//   - the wrapped error of the first adapter that failed
//   - ErrAlreadyServed on a second call
func (s *BridgeServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	return s.serve(ctx, adapters)
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

func (s *BridgeServer) serve(parent context.Context, adapters []adapter.Adapter) error {
	logger.Info("Starting ftpbridge with %d adapter(s)", len(adapters))

	// Cancelled on any shutdown, so the metrics server and the adapters'
	// own watchers follow a failing adapter down.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Buffered so a failing goroutine never blocks after shutdown began
	errChan := make(chan adapterError, len(adapters)+1)
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case ctx.Err() != nil:
				logger.Debug("%s adapter stopped during shutdown: %v", protocol, err)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	if m := s.config.Metrics; m != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Start(ctx); err != nil && ctx.Err() == nil {
				errChan <- adapterError{protocol: "metrics", err: err}
			}
		}()
	}

	var shutdownErr error
	select {
	case <-parent.Done():
		logger.Info("Shutdown signal received (reason: %v)", parent.Err())
		shutdownErr = parent.Err()

	case adapterErr := <-errChan:
		logger.Error("%s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	s.stopAllAdapters(adapters)
	cancel()

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("ftpbridge stopped")
	return shutdownErr
}

// stopAllAdapters stops the adapters in reverse registration order. Each
// Stop waits for that adapter's sessions up to the shutdown timeout.
func (s *BridgeServer) stopAllAdapters(adapters []adapter.Adapter) {
	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stopped", protocol)
		}
		cancel()
	}
}
