// Package remote defines the client contract for the remote distributed
// filesystem that every FTP session is serviced against.
//
// The bridge never speaks a store's wire protocol itself. Each backend
// (HDFS, S3, Badger, afero) lives in its own subpackage and adapts an
// existing client library to the Client interface below. Backends are
// selected by URI scheme in config.CreateRemoteClient.
package remote

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// ============================================================================
// Client Interface
// ============================================================================

// Client is a handle to the remote store, constructed once per process.
//
// Path Conventions:
// All names are absolute, slash-separated and already cleaned by the caller
// (the vfs package resolves and confines paths before any call is issued).
// "/" is the root of the remote store, not of an FTP user.
//
// Error Conventions:
// Implementations classify failures with errors that match, via errors.Is:
//   - fs.ErrNotExist: the name (or, for create-like calls, its parent) is absent
//   - fs.ErrExist: the target already exists
//   - fs.ErrPermission: the store refused the operation
//   - ErrNotEmpty, ErrNotDir, ErrIsDir, ErrUnsupported (this package)
//
// Any other error is treated as an I/O failure by callers.
//
// Parent Directories:
// OpenWrite, Mkdir and Rename never create missing parents. A missing parent
// is reported as fs.ErrNotExist.
//
// Thread Safety:
// Implementations must be safe for concurrent use by many sessions. Handles
// returned by OpenRead/OpenWrite are owned by a single caller.
type Client interface {
	// Stat returns metadata for a single entry.
	Stat(ctx context.Context, name string) (*FileInfo, error)

	// List returns the direct children of a directory, sorted by name.
	// Returns ErrNotDir when name is a file.
	List(ctx context.Context, name string) ([]*FileInfo, error)

	// OpenRead opens a file for sequential reading starting at offset.
	// Returns ErrIsDir when name is a directory.
	OpenRead(ctx context.Context, name string, offset int64) (io.ReadCloser, error)

	// OpenWrite opens a file for sequential writing, creating or truncating
	// it, or appending when append is true. The file is finalized on Close.
	//
	// What a reader observes before Close (nothing, a prefix, or the old
	// content) is backend-specific and documented per backend.
	OpenWrite(ctx context.Context, name string, append bool) (io.WriteCloser, error)

	// Rename moves from to to. When to exists it returns fs.ErrExist unless
	// overwrite is set and both are files, in which case the backend
	// replaces to in one step: a failed replace leaves to untouched.
	Rename(ctx context.Context, from, to string, overwrite bool) error

	// Remove deletes a file or directory. A non-empty directory is only
	// removed when recursive is true, otherwise ErrNotEmpty is returned.
	Remove(ctx context.Context, name string, recursive bool) error

	// Mkdir creates a single directory.
	Mkdir(ctx context.Context, name string, perm fs.FileMode) error

	// SetOwner changes owner and group. Backends without ownership return
	// ErrUnsupported.
	SetOwner(ctx context.Context, name, owner, group string) error

	// SetPermission changes the permission bits.
	SetPermission(ctx context.Context, name string, perm fs.FileMode) error

	// SetModTime changes the modification time.
	SetModTime(ctx context.Context, name string, mtime time.Time) error

	// Close releases connections held by the client.
	Close() error
}

// ============================================================================
// FileInfo
// ============================================================================

// FileInfo is the metadata of a remote entry as reported by the store.
//
// It is a transient snapshot; nothing in the bridge caches it beyond a
// single FTP reply.
type FileInfo struct {
	// Path is the absolute remote path of the entry.
	Path string

	// Size in bytes (0 for directories on most stores).
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time

	// Mode carries fs.ModeDir for directories plus permission bits.
	Mode fs.FileMode

	// Owner and Group are the store's identities, empty when unknown.
	Owner string
	Group string
}

// Name returns the last path element.
func (fi *FileInfo) Name() string {
	return Base(fi.Path)
}

// IsDir reports whether the entry is a directory.
func (fi *FileInfo) IsDir() bool {
	return fi.Mode.IsDir()
}
