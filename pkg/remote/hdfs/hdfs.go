// Package hdfs implements remote.Client against an HDFS namenode using the
// native RPC protocol (github.com/colinmarc/hdfs/v2).
//
// The client connects as a single identity, the configured superuser, and
// performs every operation on behalf of all FTP users. Per-user ownership is
// applied afterwards with SetOwner, which only a superuser may do.
package hdfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/colinmarc/hdfs/v2"
	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

// Config configures the HDFS connection.
type Config struct {
	// Addresses lists namenode host:port pairs. Required.
	Addresses []string

	// User is the identity the client authenticates as (the superuser).
	User string

	// Root is an optional store prefix; "/" in the bridge maps to Root.
	Root string
}

// namenode is the subset of *hdfs.Client the bridge uses.
type namenode interface {
	Stat(name string) (os.FileInfo, error)
	ReadDir(dirname string) ([]os.FileInfo, error)
	Open(name string) (*hdfs.FileReader, error)
	Create(name string) (*hdfs.FileWriter, error)
	Append(name string) (*hdfs.FileWriter, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	RemoveAll(name string) error
	Mkdir(dirname string, perm os.FileMode) error
	Chown(name string, user, group string) error
	Chmod(name string, perm os.FileMode) error
	Chtimes(name string, atime time.Time, mtime time.Time) error
	Close() error
}

// Client is a remote.Client backed by HDFS.
type Client struct {
	nn   namenode
	root string
}

var _ remote.Client = (*Client)(nil)

// New connects to the namenode.
func New(cfg Config) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("hdfs: at least one namenode address is required")
	}

	nn, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: cfg.Addresses,
		User:      cfg.User,
	})
	if err != nil {
		return nil, fmt.Errorf("hdfs: failed to connect to %v: %w", cfg.Addresses, err)
	}

	logger.Info("Connected to HDFS namenode %v as %q (root=%q)", cfg.Addresses, cfg.User, rootOf(cfg.Root))
	return &Client{nn: nn, root: rootOf(cfg.Root)}, nil
}

func rootOf(root string) string {
	return remote.Clean(root)
}

// abs maps a store path to the namenode path.
func (c *Client) abs(name string) string {
	return path.Join(c.root, remote.Clean(name))
}

func (c *Client) info(name string, fi os.FileInfo) *remote.FileInfo {
	info := &remote.FileInfo{
		Path:    remote.Clean(name),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Mode:    fi.Mode(),
	}
	if hfi, ok := fi.(*hdfs.FileInfo); ok {
		info.Owner = hfi.Owner()
		info.Group = hfi.OwnerGroup()
	}
	return info
}

func (c *Client) Stat(ctx context.Context, name string) (*remote.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := c.nn.Stat(c.abs(name))
	if err != nil {
		return nil, remote.Classify("stat", name, err)
	}
	return c.info(name, fi), nil
}

func (c *Client) List(ctx context.Context, name string) ([]*remote.FileInfo, error) {
	dir, err := c.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, remote.PathErr("list", name, remote.ErrNotDir)
	}

	// ReadDir returns entries sorted by name.
	entries, err := c.nn.ReadDir(c.abs(name))
	if err != nil {
		return nil, remote.Classify("list", name, err)
	}
	infos := make([]*remote.FileInfo, 0, len(entries))
	for _, fi := range entries {
		infos = append(infos, c.info(path.Join(remote.Clean(name), fi.Name()), fi))
	}
	return infos, nil
}

func (c *Client) OpenRead(ctx context.Context, name string, offset int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := c.nn.Open(c.abs(name))
	if err != nil {
		return nil, remote.Classify("open", name, err)
	}
	if r.Stat().IsDir() {
		_ = r.Close()
		return nil, remote.PathErr("open", name, remote.ErrIsDir)
	}
	if offset > 0 {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			_ = r.Close()
			return nil, remote.Classify("seek", name, err)
		}
	}
	return r, nil
}

// OpenWrite creates, truncates or appends to name. HDFS has no truncate-on-open,
// so an overwrite removes the old file first.
func (c *Client) OpenWrite(ctx context.Context, name string, append bool) (io.WriteCloser, error) {
	if err := c.requireParent(ctx, "create", name); err != nil {
		return nil, err
	}

	existing, err := c.Stat(ctx, name)
	switch {
	case err == nil && existing.IsDir():
		return nil, remote.PathErr("create", name, remote.ErrIsDir)
	case err == nil && append:
		w, err := c.nn.Append(c.abs(name))
		if err != nil {
			return nil, remote.Classify("append", name, err)
		}
		return w, nil
	case err == nil:
		if err := c.nn.Remove(c.abs(name)); err != nil {
			return nil, remote.Classify("create", name, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	w, err := c.nn.Create(c.abs(name))
	if err != nil {
		return nil, remote.Classify("create", name, err)
	}
	return w, nil
}

// Rename maps onto the namenode's rename2 with OverwriteDest, which
// replaces an existing target atomically. Targets that may not be replaced
// are refused before the call.
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
	return remote.Classify("rename", from, c.nn.Rename(c.abs(from), c.abs(to)))
}

func (c *Client) Remove(ctx context.Context, name string, recursive bool) error {
	info, err := c.Stat(ctx, name)
	if err != nil {
		return err
	}
	if info.IsDir() && recursive {
		return remote.Classify("remove", name, c.nn.RemoveAll(c.abs(name)))
	}
	return remote.Classify("remove", name, c.nn.Remove(c.abs(name)))
}

func (c *Client) Mkdir(ctx context.Context, name string, perm fs.FileMode) error {
	if err := c.requireParent(ctx, "mkdir", name); err != nil {
		return err
	}
	return remote.Classify("mkdir", name, c.nn.Mkdir(c.abs(name), perm))
}

func (c *Client) SetOwner(ctx context.Context, name, owner, group string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return remote.Classify("chown", name, c.nn.Chown(c.abs(name), owner, group))
}

func (c *Client) SetPermission(ctx context.Context, name string, perm fs.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return remote.Classify("chmod", name, c.nn.Chmod(c.abs(name), perm))
}

func (c *Client) SetModTime(ctx context.Context, name string, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return remote.Classify("chtimes", name, c.nn.Chtimes(c.abs(name), mtime, mtime))
}

func (c *Client) Close() error {
	return c.nn.Close()
}

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
