// Package aferofs implements remote.Client on top of an afero.Fs.
//
// It backs the "mem://" scheme (afero.MemMapFs, used by tests and demos) and
// the "file://" scheme (afero.BasePathFs over the OS filesystem, useful when
// the distributed store is mounted locally, e.g. through an NFS or FUSE
// gateway).
//
// Partial writes are visible to readers as soon as they reach the underlying
// afero file; there is no commit-on-close step.
package aferofs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/marmos91/ftpbridge/pkg/remote"
	"github.com/spf13/afero"
)

// Client adapts an afero.Fs to remote.Client.
type Client struct {
	fs afero.Fs
}

var _ remote.Client = (*Client)(nil)

// New wraps an existing afero filesystem.
func New(fsys afero.Fs) *Client {
	return &Client{fs: fsys}
}

// NewMemory returns a client over an empty in-memory filesystem.
func NewMemory() *Client {
	return New(afero.NewMemMapFs())
}

// NewBasePath returns a client rooted at an existing local directory.
func NewBasePath(root string) (*Client, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

func (c *Client) Stat(ctx context.Context, name string) (*remote.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := c.fs.Stat(name)
	if err != nil {
		return nil, remote.Classify("stat", name, err)
	}
	return toInfo(name, fi), nil
}

func (c *Client) List(ctx context.Context, name string) ([]*remote.FileInfo, error) {
	dir, err := c.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, remote.PathErr("list", name, remote.ErrNotDir)
	}

	// afero.ReadDir sorts by name.
	entries, err := afero.ReadDir(c.fs, name)
	if err != nil {
		return nil, remote.Classify("list", name, err)
	}

	infos := make([]*remote.FileInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, toInfo(join(name, entry.Name()), entry))
	}
	return infos, nil
}

func (c *Client) OpenRead(ctx context.Context, name string, offset int64) (io.ReadCloser, error) {
	info, err := c.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, remote.PathErr("open", name, remote.ErrIsDir)
	}

	f, err := c.fs.Open(name)
	if err != nil {
		return nil, remote.Classify("open", name, err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, remote.Classify("seek", name, err)
		}
	}
	return f, nil
}

func (c *Client) OpenWrite(ctx context.Context, name string, append bool) (io.WriteCloser, error) {
	if err := c.requireParent(ctx, "create", name); err != nil {
		return nil, err
	}
	if info, err := c.Stat(ctx, name); err == nil && info.IsDir() {
		return nil, remote.PathErr("create", name, remote.ErrIsDir)
	}

	flag := os.O_WRONLY | os.O_CREATE
	if append {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}

	f, err := c.fs.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, remote.Classify("create", name, err)
	}
	return f, nil
}

// Rename relies on afero's Rename replacing an existing file target.
func (c *Client) Rename(ctx context.Context, from, to string, overwrite bool) error {
	src, err := c.Stat(ctx, from)
	if err != nil {
		return err
	}
	if err := c.requireParent(ctx, "rename", to); err != nil {
		return err
	}
	if dst, err := c.Stat(ctx, to); err == nil {
		if err := remote.CheckReplace("rename", to, src, dst, overwrite); err != nil {
			return err
		}
	}
	if err := c.fs.Rename(from, to); err != nil {
		return remote.Classify("rename", from, err)
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, name string, recursive bool) error {
	info, err := c.Stat(ctx, name)
	if err != nil {
		return err
	}

	if info.IsDir() {
		if recursive {
			return remote.Classify("remove", name, c.fs.RemoveAll(name))
		}
		children, err := afero.ReadDir(c.fs, name)
		if err != nil {
			return remote.Classify("remove", name, err)
		}
		if len(children) > 0 {
			return remote.PathErr("remove", name, remote.ErrNotEmpty)
		}
	}
	return remote.Classify("remove", name, c.fs.Remove(name))
}

func (c *Client) Mkdir(ctx context.Context, name string, perm fs.FileMode) error {
	if err := c.requireParent(ctx, "mkdir", name); err != nil {
		return err
	}
	if _, err := c.Stat(ctx, name); err == nil {
		return remote.Exist("mkdir", name)
	}
	return remote.Classify("mkdir", name, c.fs.Mkdir(name, perm))
}

// SetOwner is not supported: afero exposes numeric ids only and the bridge
// deals in store identities (names).
func (c *Client) SetOwner(ctx context.Context, name, owner, group string) error {
	return remote.PathErr("chown", name, remote.ErrUnsupported)
}

func (c *Client) SetPermission(ctx context.Context, name string, perm fs.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return remote.Classify("chmod", name, c.fs.Chmod(name, perm))
}

func (c *Client) SetModTime(ctx context.Context, name string, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return remote.Classify("chtimes", name, c.fs.Chtimes(name, mtime, mtime))
}

func (c *Client) Close() error {
	return nil
}

// requireParent fails with fs.ErrNotExist when the parent of name is absent.
// MemMapFs would otherwise register the entry under a phantom parent.
func (c *Client) requireParent(ctx context.Context, op, name string) error {
	parent, err := c.Stat(ctx, remote.Parent(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return remote.NotExist(op, name)
		}
		return err
	}
	if !parent.IsDir() {
		return remote.PathErr(op, name, remote.ErrNotDir)
	}
	return nil
}

func toInfo(name string, fi fs.FileInfo) *remote.FileInfo {
	return &remote.FileInfo{
		Path:    remote.Clean(name),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Mode:    fi.Mode(),
	}
}

func join(dir, name string) string {
	return remote.Clean(dir + "/" + name)
}
