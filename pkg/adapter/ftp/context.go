package ftp

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gonzalop/ftp/server"
	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/vfs"
)

// clientContext implements server.ClientContext for one FTP connection.
//
// It owns the connection's vfs.Session (replaced on every successful CWD)
// and every stream opened for it; Close releases them all.
type clientContext struct {
	driver *driver
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	session vfs.Session
	handles map[*handle]struct{}

	closeOnce sync.Once
}

var _ server.ClientContext = (*clientContext)(nil)

func (c *clientContext) current() vfs.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// run times op, maps its error for the engine and records the outcome.
func (c *clientContext) run(op, path string, fn func(vfs.Session) error) error {
	start := time.Now()
	err := engineError(fn(c.current()))
	c.driver.metrics.RecordOperation(op, time.Since(start), err)
	if err != nil {
		logger.Debug("[%s] %s %q failed: %v", c.current().ID, op, path, err)
	}
	return err
}

// ============================================================================
// Navigation
// ============================================================================

func (c *clientContext) ChangeDir(path string) error {
	return c.run("cwd", path, func(s vfs.Session) error {
		next, err := c.driver.view.ChangeDir(c.ctx, s, path)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.session = next
		c.mu.Unlock()
		return nil
	})
}

func (c *clientContext) GetWd() (string, error) {
	return c.current().Pwd(), nil
}

func (c *clientContext) ListDir(path string) ([]os.FileInfo, error) {
	var infos []os.FileInfo
	path = stripListFlags(path)

	err := c.run("list", path, func(s vfs.Session) error {
		entries, err := c.driver.view.List(c.ctx, s, path)
		if errors.Is(err, vfs.ErrNotADirectory) {
			// LIST of a file lists that file.
			entry, statErr := c.driver.view.Stat(c.ctx, s, path)
			if statErr != nil {
				return statErr
			}
			infos = []os.FileInfo{entry}
			return nil
		}
		if err != nil {
			return err
		}
		infos = make([]os.FileInfo, 0, len(entries))
		for _, e := range entries {
			infos = append(infos, e)
		}
		return nil
	})
	return infos, err
}

func (c *clientContext) GetFileInfo(path string) (os.FileInfo, error) {
	var info os.FileInfo
	err := c.run("stat", path, func(s vfs.Session) error {
		entry, err := c.driver.view.Stat(c.ctx, s, path)
		if err != nil {
			return err
		}
		info = entry
		return nil
	})
	return info, err
}

// stripListFlags drops ls-style options ("-la") that many clients send
// with LIST and NLST.
func stripListFlags(arg string) string {
	arg = strings.TrimSpace(arg)
	for strings.HasPrefix(arg, "-") {
		flag, rest, _ := strings.Cut(arg, " ")
		if flag == "-" {
			break
		}
		arg = strings.TrimSpace(rest)
	}
	return arg
}

// ============================================================================
// Mutations
// ============================================================================

func (c *clientContext) MakeDir(path string) error {
	return c.run("mkdir", path, func(s vfs.Session) error {
		return c.driver.view.Mkdir(c.ctx, s, path)
	})
}

func (c *clientContext) RemoveDir(path string) error {
	return c.run("rmdir", path, func(s vfs.Session) error {
		return c.driver.view.RemoveDir(c.ctx, s, path)
	})
}

func (c *clientContext) DeleteFile(path string) error {
	return c.run("delete", path, func(s vfs.Session) error {
		return c.driver.view.Delete(c.ctx, s, path)
	})
}

func (c *clientContext) Rename(fromPath, toPath string) error {
	return c.run("rename", fromPath, func(s vfs.Session) error {
		return c.driver.view.Rename(c.ctx, s, fromPath, toPath)
	})
}

func (c *clientContext) SetTime(path string, t time.Time) error {
	return c.run("mfmt", path, func(s vfs.Session) error {
		return c.driver.view.SetModTime(c.ctx, s, path, t)
	})
}

func (c *clientContext) Chmod(path string, mode os.FileMode) error {
	return c.run("chmod", path, func(s vfs.Session) error {
		return c.driver.view.Chmod(c.ctx, s, path, mode)
	})
}

func (c *clientContext) GetHash(path string, algo string) (string, error) {
	var sum string
	err := c.run("hash", path, func(s vfs.Session) error {
		var err error
		sum, err = c.driver.view.Hash(c.ctx, s, path, algo)
		return err
	})
	return sum, err
}

// ============================================================================
// Transfers
// ============================================================================

// OpenFile maps the engine's open flags onto a stream:
//   - no write flag: download (RETR; REST arrives as a Seek)
//   - O_APPEND: append (APPE)
//   - O_TRUNC: overwrite (STOR)
//   - neither: resume, decided by the following Seek (REST + STOR)
func (c *clientContext) OpenFile(path string, flag int) (io.ReadWriteCloser, error) {
	var h *handle

	if flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		err := c.run("retr", path, func(s vfs.Session) error {
			rs, err := c.driver.view.OpenForRead(c.ctx, s, path, 0)
			if err != nil {
				return err
			}
			h = c.track(&handle{reader: rs, direction: directionDownload})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return h, nil
	}

	mode := vfs.WriteResume
	op := "stor"
	switch {
	case flag&os.O_APPEND != 0:
		mode, op = vfs.WriteAppend, "appe"
	case flag&os.O_TRUNC != 0:
		mode = vfs.WriteTruncate
	}

	err := c.run(op, path, func(s vfs.Session) error {
		ws, err := c.driver.view.OpenForWrite(c.ctx, s, path, mode)
		if err != nil {
			return err
		}
		h = c.track(&handle{writer: ws, direction: directionUpload})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (c *clientContext) track(h *handle) *handle {
	h.owner = c
	c.mu.Lock()
	c.handles[h] = struct{}{}
	c.mu.Unlock()
	return h
}

func (c *clientContext) untrack(h *handle) {
	c.mu.Lock()
	delete(c.handles, h)
	c.mu.Unlock()
}

// ============================================================================
// Lifecycle
// ============================================================================

func (c *clientContext) GetSettings() *server.Settings {
	return c.driver.settings
}

// Close is called by the engine when the connection ends. It aborts
// anything still running for the session and releases every stream.
func (c *clientContext) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		open := make([]*handle, 0, len(c.handles))
		for h := range c.handles {
			open = append(open, h)
		}
		c.mu.Unlock()

		for _, h := range open {
			if err := h.Close(); err != nil {
				logger.Debug("[%s] closing stream on disconnect: %v", c.current().ID, err)
			}
		}
		c.driver.sessionClosed(c.current())
	})
	return nil
}
