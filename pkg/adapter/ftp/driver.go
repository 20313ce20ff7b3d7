package ftp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gonzalop/ftp/server"
	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/metrics"
	"github.com/marmos91/ftpbridge/pkg/users"
	"github.com/marmos91/ftpbridge/pkg/vfs"
)

// Authenticator is the part of the credential store the driver needs.
type Authenticator interface {
	Authenticate(name, password string) (*users.UserRecord, error)
}

// errLoginIncorrect is all the engine (and therefore the client) learns
// about a failed login; the reason only reaches logs and metrics.
var errLoginIncorrect = fmt.Errorf("login incorrect: %w", os.ErrPermission)

// driver implements server.Driver. One driver serves every connection of
// a listener and tracks the sessions it created so shutdown can wait for
// them.
type driver struct {
	protocol string
	view     *vfs.View
	auth     Authenticator
	metrics  metrics.FTPMetrics
	settings *server.Settings

	// baseCtx parents every session context; cancelSessions aborts all
	// in-flight remote calls.
	baseCtx        context.Context
	cancelSessions context.CancelFunc

	mu       sync.Mutex
	draining bool
	sessions sync.WaitGroup
	count    atomic.Int32
}

func newDriver(protocol string, view *vfs.View, auth Authenticator, m metrics.FTPMetrics, settings *server.Settings) *driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &driver{
		protocol:       protocol,
		view:           view,
		auth:           auth,
		metrics:        m,
		settings:       settings,
		baseCtx:        ctx,
		cancelSessions: cancel,
	}
}

// Authenticate checks the credentials against the store and opens a
// session in the user's home directory.
func (d *driver) Authenticate(user, pass, host string) (server.ClientContext, error) {
	record, err := d.auth.Authenticate(user, pass)
	if err != nil {
		reason := users.ReasonOf(err)
		d.metrics.RecordAuth(false, string(reason))
		logger.Info("%s login failed for %q: %s", d.protocol, user, reason)
		return nil, errLoginIncorrect
	}

	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		logger.Info("%s login for %q refused: server is shutting down", d.protocol, user)
		return nil, errLoginIncorrect
	}
	d.sessions.Add(1)
	d.mu.Unlock()

	session := vfs.NewSession(record)
	ctx, cancel := context.WithCancel(d.baseCtx)
	c := &clientContext{
		driver:  d,
		ctx:     ctx,
		cancel:  cancel,
		session: session,
		handles: make(map[*handle]struct{}),
	}

	d.metrics.RecordAuth(true, "")
	d.metrics.SessionOpened()
	active := d.count.Add(1)

	if _, err := d.view.Stat(ctx, session, "/"); err != nil {
		logger.Warn("[%s] home directory of %s is not accessible: %v", session.ID, user, err)
	}
	logger.Info("[%s] %s session opened for %s (host=%q, home=%s, write=%v, active=%d)",
		session.ID, d.protocol, user, host, record.HomeDirectory, record.WritePermission, active)

	return c, nil
}

// sessionClosed is called exactly once per session by clientContext.Close.
func (d *driver) sessionClosed(s vfs.Session) {
	active := d.count.Add(-1)
	d.metrics.SessionClosed()
	logger.Info("[%s] %s session closed for %s (active=%d)", s.ID, d.protocol, s.User.Name, active)
	d.sessions.Done()
}

// drain refuses new logins from now on.
func (d *driver) drain() {
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()
}

// wait blocks until every session has closed or ctx is done. drain must
// have been called first.
func (d *driver) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// activeSessions returns the number of open sessions.
func (d *driver) activeSessions() int32 {
	return d.count.Load()
}
