package adapter

import (
	"context"
)

// Adapter is a protocol listener managed by server.BridgeServer.
//
// Every adapter serves the same vfs.View and credential store, handed over
// at construction time, so sessions opened on different listeners see the
// same remote tree.
//
// Lifecycle:
//  1. Creation: adapter is built with its listener configuration
//  2. Startup: Serve() binds the listener and blocks until shutdown
//  3. Shutdown: Stop() stops accepting and waits for sessions, bounded by ctx
//
// Thread safety:
// Stop() may be called concurrently with Serve() and more than once.
type Adapter interface {
	// Serve binds the listener and blocks until ctx is cancelled or an
	// unrecoverable error occurs.
	//
	// Returns nil on graceful shutdown. If Serve returns an error before
	// ctx is cancelled, the server treats it as fatal and stops every other
	// adapter.
	Serve(ctx context.Context) error

	// Stop stops accepting connections and waits for active sessions to end
	// until ctx expires, then closes whatever is left.
	Stop(ctx context.Context) error

	// Protocol returns the name used in logs ("FTP", "FTPS").
	Protocol() string

	// Port returns the bound TCP port, or the configured one before Serve.
	Port() int
}
