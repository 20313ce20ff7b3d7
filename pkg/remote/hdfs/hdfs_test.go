package hdfs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/colinmarc/hdfs/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ftpbridge/pkg/remote"
)

// fakeNamenode mimics namenode semantics on an in-memory afero filesystem.
// Content streams need a live cluster and are not supported.
type fakeNamenode struct {
	fs     afero.Fs
	owners map[string][2]string
}

func newFakeNamenode() *fakeNamenode {
	return &fakeNamenode{fs: afero.NewMemMapFs(), owners: map[string][2]string{}}
}

var errNoCluster = errors.New("streams need a live namenode")

func (f *fakeNamenode) Stat(name string) (os.FileInfo, error)      { return f.fs.Stat(name) }
func (f *fakeNamenode) ReadDir(name string) ([]os.FileInfo, error) { return afero.ReadDir(f.fs, name) }
func (f *fakeNamenode) Open(string) (*hdfs.FileReader, error)      { return nil, errNoCluster }
func (f *fakeNamenode) Create(string) (*hdfs.FileWriter, error)    { return nil, errNoCluster }
func (f *fakeNamenode) Append(string) (*hdfs.FileWriter, error)    { return nil, errNoCluster }
func (f *fakeNamenode) Rename(from, to string) error               { return f.fs.Rename(from, to) }
func (f *fakeNamenode) RemoveAll(name string) error                { return f.fs.RemoveAll(name) }
func (f *fakeNamenode) Mkdir(name string, perm os.FileMode) error  { return f.fs.Mkdir(name, perm) }
func (f *fakeNamenode) Chmod(name string, perm os.FileMode) error  { return f.fs.Chmod(name, perm) }
func (f *fakeNamenode) Close() error                               { return nil }

func (f *fakeNamenode) Remove(name string) error {
	entries, err := afero.ReadDir(f.fs, name)
	if err == nil && len(entries) > 0 {
		return &os.PathError{Op: "remove", Path: name, Err: syscall.ENOTEMPTY}
	}
	return f.fs.Remove(name)
}

func (f *fakeNamenode) Chown(name, user, group string) error {
	if _, err := f.fs.Stat(name); err != nil {
		return err
	}
	f.owners[name] = [2]string{user, group}
	return nil
}

func (f *fakeNamenode) Chtimes(name string, atime, mtime time.Time) error {
	return f.fs.Chtimes(name, atime, mtime)
}

func newTestClient(t *testing.T, root string) (*Client, *fakeNamenode) {
	t.Helper()
	nn := newFakeNamenode()
	require.NoError(t, nn.fs.MkdirAll(rootOf(root), 0o755))
	return &Client{nn: nn, root: rootOf(root)}, nn
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(Config{User: "hdfs"})
	assert.Error(t, err)
}

func TestAbs(t *testing.T) {
	c, _ := newTestClient(t, "/data/ftp")

	assert.Equal(t, "/data/ftp", c.abs("/"))
	assert.Equal(t, "/data/ftp/alice/f.txt", c.abs("/alice/f.txt"))
	assert.Equal(t, "/data/ftp/alice", c.abs("alice/../alice"))
	assert.Equal(t, "/data/ftp", c.abs("/../.."), "cleaned paths never climb above root")
}

func TestDirectoriesUnderRoot(t *testing.T) {
	ctx := context.Background()
	c, nn := newTestClient(t, "/data")

	require.NoError(t, c.Mkdir(ctx, "/alice", 0o755))
	_, err := nn.fs.Stat("/data/alice")
	require.NoError(t, err)

	entries, err := c.List(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/alice", entries[0].Path)
	assert.True(t, entries[0].IsDir())
}

func TestMkdirMissingParent(t *testing.T) {
	c, _ := newTestClient(t, "/")
	err := c.Mkdir(context.Background(), "/a/b", 0o755)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRenameRefusesExistingTarget(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "/")
	require.NoError(t, c.Mkdir(ctx, "/a", 0o755))
	require.NoError(t, c.Mkdir(ctx, "/b", 0o755))

	assert.ErrorIs(t, c.Rename(ctx, "/a", "/b", false), fs.ErrExist)
	assert.ErrorIs(t, c.Rename(ctx, "/missing", "/c", false), fs.ErrNotExist)
	assert.ErrorIs(t, c.Rename(ctx, "/a", "/x/y", false), fs.ErrNotExist)

	require.NoError(t, c.Rename(ctx, "/a", "/c", false))
	_, err := c.Stat(ctx, "/c")
	assert.NoError(t, err)
}

func TestRenameOverwrite(t *testing.T) {
	ctx := context.Background()
	c, nn := newTestClient(t, "/")
	require.NoError(t, afero.WriteFile(nn.fs, "/a.txt", []byte("new"), 0o644))
	require.NoError(t, afero.WriteFile(nn.fs, "/b.txt", []byte("old"), 0o644))
	require.NoError(t, c.Mkdir(ctx, "/dir", 0o755))

	assert.ErrorIs(t, c.Rename(ctx, "/a.txt", "/dir", true), fs.ErrExist)
	assert.ErrorIs(t, c.Rename(ctx, "/dir", "/b.txt", true), fs.ErrExist)

	require.NoError(t, c.Rename(ctx, "/a.txt", "/b.txt", true))
	data, err := afero.ReadFile(nn.fs, "/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	_, err = c.Stat(ctx, "/a.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRemoveNonEmpty(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "/")
	require.NoError(t, c.Mkdir(ctx, "/d", 0o755))
	require.NoError(t, c.Mkdir(ctx, "/d/e", 0o755))

	assert.ErrorIs(t, c.Remove(ctx, "/d", false), remote.ErrNotEmpty)
	require.NoError(t, c.Remove(ctx, "/d", true))

	_, err := c.Stat(ctx, "/d")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSetOwner(t *testing.T) {
	ctx := context.Background()
	c, nn := newTestClient(t, "/srv")
	require.NoError(t, c.Mkdir(ctx, "/alice", 0o755))

	require.NoError(t, c.SetOwner(ctx, "/alice", "alice", "users"))
	assert.Equal(t, [2]string{"alice", "users"}, nn.owners["/srv/alice"])

	assert.ErrorIs(t, c.SetOwner(ctx, "/nobody", "x", ""), fs.ErrNotExist)
}

func TestErrorsUseStorePaths(t *testing.T) {
	c, _ := newTestClient(t, "/secret/prefix")
	_, err := c.Stat(context.Background(), "/missing")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "/secret/prefix")
}

func TestCancelledContext(t *testing.T) {
	c, _ := newTestClient(t, "/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Stat(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)
}
