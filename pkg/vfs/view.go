// Package vfs is the virtual filesystem an FTP session sees.
//
// Every operation resolves the client path against the session (home
// confinement happens here and nowhere else), checks the user's write
// permission, delegates to the remote client and translates remote errors
// into this package's taxonomy. Error paths are always client-visible paths.
package vfs

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"hash/crc32"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/internal/ratelimiter"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

// Policy holds the behaviours deployments choose explicitly.
type Policy struct {
	// RecursiveDelete lets RMD remove non-empty directories.
	RecursiveDelete bool

	// Overwrite lets STOR and RNTO replace existing files.
	Overwrite bool

	// ChownToUser makes new files and directories owned by the FTP user.
	ChownToUser bool
}

// DefaultPolicy is overwrite on, recursive delete off, chown on.
func DefaultPolicy() Policy {
	return Policy{Overwrite: true, ChownToUser: true}
}

// View implements FTP filesystem operations over a remote client. It holds
// no per-session state and is shared by all sessions.
type View struct {
	client remote.Client
	policy Policy
}

// NewView creates a view over client.
func NewView(client remote.Client, policy Policy) *View {
	return &View{client: client, policy: policy}
}

// Policy returns the view's policy.
func (v *View) Policy() Policy {
	return v.policy
}

// ============================================================================
// FileEntry
// ============================================================================

// FileEntry is a remote entry as the client sees it. It implements
// fs.FileInfo; Sys returns the underlying *remote.FileInfo.
type FileEntry struct {
	path string
	info *remote.FileInfo
}

var _ fs.FileInfo = (*FileEntry)(nil)

// Path is the client-visible path.
func (e *FileEntry) Path() string       { return e.path }
func (e *FileEntry) Name() string       { return remote.Base(e.path) }
func (e *FileEntry) Size() int64        { return e.info.Size }
func (e *FileEntry) Mode() fs.FileMode  { return e.info.Mode }
func (e *FileEntry) ModTime() time.Time { return e.info.ModTime }
func (e *FileEntry) IsDir() bool        { return e.info.IsDir() }
func (e *FileEntry) Sys() any           { return e.info }
func (e *FileEntry) Owner() string      { return e.info.Owner }
func (e *FileEntry) Group() string      { return e.info.Group }

func (s Session) entry(info *remote.FileInfo) *FileEntry {
	return &FileEntry{path: s.Virtual(info.Path), info: info}
}

// ============================================================================
// Helpers
// ============================================================================

// resolve returns the remote path and the normalized client path.
func (v *View) resolve(op string, s Session, p string) (string, string, error) {
	abs, err := Resolve(s, p)
	if err != nil {
		var pe *PathError
		if errors.As(err, &pe) {
			pe.Op = op
		}
		return "", "", err
	}
	return abs, s.Virtual(abs), nil
}

func (v *View) checkWrite(op string, s Session, virtual string) error {
	if !s.User.WritePermission {
		return pathErr(op, virtual, ErrPermission)
	}
	return nil
}

// resolveForWrite resolves p and checks write permission.
func (v *View) resolveForWrite(op string, s Session, p string) (string, string, error) {
	abs, virtual, err := v.resolve(op, s, p)
	if err != nil {
		return "", "", err
	}
	if err := v.checkWrite(op, s, virtual); err != nil {
		return "", "", err
	}
	return abs, virtual, nil
}

func (v *View) stat(ctx context.Context, op string, abs, virtual string) (*remote.FileInfo, error) {
	info, err := v.client.Stat(ctx, abs)
	if err != nil {
		return nil, translate(op, virtual, err)
	}
	return info, nil
}

// requireParent checks that the parent of abs is an existing directory.
func (v *View) requireParent(ctx context.Context, op string, abs, virtual string) error {
	parent, err := v.client.Stat(ctx, remote.Parent(abs))
	if err != nil {
		return translate(op, virtual, err)
	}
	if !parent.IsDir() {
		return pathErr(op, virtual, ErrNotADirectory)
	}
	return nil
}

// chown hands a new entry to the session user. Failure is logged only.
func (v *View) chown(ctx context.Context, s Session, abs string) {
	if !v.policy.ChownToUser {
		return
	}
	err := v.client.SetOwner(ctx, abs, s.User.Name, s.User.MainGroup())
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrUnsupported):
		logger.Debug("[%s] remote store does not support ownership, skipping chown of %s", s.ID, s.Virtual(abs))
	default:
		logger.Warn("[%s] chown of %s to %s failed: %v", s.ID, s.Virtual(abs), s.User.Name, translate("chown", s.Virtual(abs), err))
	}
}

// ============================================================================
// Queries
// ============================================================================

// List returns the entries of a directory.
func (v *View) List(ctx context.Context, s Session, p string) ([]*FileEntry, error) {
	abs, virtual, err := v.resolve("list", s, p)
	if err != nil {
		return nil, err
	}

	infos, err := v.client.List(ctx, abs)
	if err != nil {
		return nil, translate("list", virtual, err)
	}

	entries := make([]*FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, s.entry(info))
	}
	return entries, nil
}

// Stat returns a single entry.
func (v *View) Stat(ctx context.Context, s Session, p string) (*FileEntry, error) {
	abs, virtual, err := v.resolve("stat", s, p)
	if err != nil {
		return nil, err
	}
	info, err := v.stat(ctx, "stat", abs, virtual)
	if err != nil {
		return nil, err
	}
	return s.entry(info), nil
}

// ChangeDir returns s moved to p. On any error the returned session is s.
func (v *View) ChangeDir(ctx context.Context, s Session, p string) (Session, error) {
	abs, virtual, err := v.resolve("cwd", s, p)
	if err != nil {
		return s, err
	}
	info, err := v.stat(ctx, "cwd", abs, virtual)
	if err != nil {
		return s, err
	}
	if !info.IsDir() {
		return s, pathErr("cwd", virtual, ErrNotADirectory)
	}
	return s.withCwd(abs), nil
}

// ============================================================================
// Mutations
// ============================================================================

// Mkdir creates one directory; parents are never created implicitly.
func (v *View) Mkdir(ctx context.Context, s Session, p string) error {
	abs, virtual, err := v.resolveForWrite("mkdir", s, p)
	if err != nil {
		return err
	}
	if abs == s.Home() {
		return pathErr("mkdir", virtual, ErrAlreadyExists)
	}
	if err := v.client.Mkdir(ctx, abs, 0o755); err != nil {
		return translate("mkdir", virtual, err)
	}
	v.chown(ctx, s, abs)
	logger.Debug("[%s] %s created directory %s", s.ID, s.User.Name, virtual)
	return nil
}

// Delete removes a file (DELE). Directories are refused.
func (v *View) Delete(ctx context.Context, s Session, p string) error {
	abs, virtual, err := v.resolveForWrite("delete", s, p)
	if err != nil {
		return err
	}
	info, err := v.stat(ctx, "delete", abs, virtual)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return pathErr("delete", virtual, ErrIsADirectory)
	}
	if err := v.client.Remove(ctx, abs, false); err != nil {
		return translate("delete", virtual, err)
	}
	logger.Debug("[%s] %s deleted %s", s.ID, s.User.Name, virtual)
	return nil
}

// RemoveDir removes a directory (RMD). Non-empty directories are refused
// unless the policy allows recursive deletes. The home directory itself can
// never be removed.
func (v *View) RemoveDir(ctx context.Context, s Session, p string) error {
	abs, virtual, err := v.resolveForWrite("rmdir", s, p)
	if err != nil {
		return err
	}
	if abs == s.Home() {
		return pathErr("rmdir", virtual, ErrPermission)
	}
	info, err := v.stat(ctx, "rmdir", abs, virtual)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return pathErr("rmdir", virtual, ErrNotADirectory)
	}
	if err := v.client.Remove(ctx, abs, v.policy.RecursiveDelete); err != nil {
		return translate("rmdir", virtual, err)
	}
	logger.Debug("[%s] %s removed directory %s (recursive=%v)", s.ID, s.User.Name, virtual, v.policy.RecursiveDelete)
	return nil
}

// Rename moves from to to. Both paths are confined independently. Every
// precondition is checked before the remote store is changed, so a refused
// rename leaves the source untouched.
func (v *View) Rename(ctx context.Context, s Session, from, to string) error {
	fromAbs, fromVirtual, err := v.resolveForWrite("rename", s, from)
	if err != nil {
		return err
	}
	toAbs, toVirtual, err := v.resolve("rename", s, to)
	if err != nil {
		return err
	}
	if fromAbs == s.Home() {
		return pathErr("rename", fromVirtual, ErrPermission)
	}
	if toAbs == s.Home() {
		return pathErr("rename", toVirtual, ErrAlreadyExists)
	}

	src, err := v.stat(ctx, "rename", fromAbs, fromVirtual)
	if err != nil {
		return err
	}
	if fromAbs == toAbs {
		return nil
	}
	if src.IsDir() && remote.Within(toAbs, fromAbs) {
		return pathErr("rename", toVirtual, ErrPermission)
	}
	if err := v.requireParent(ctx, "rename", toAbs, toVirtual); err != nil {
		return err
	}

	dst, err := v.client.Stat(ctx, toAbs)
	switch {
	case err == nil:
		if dst.IsDir() || src.IsDir() || !v.policy.Overwrite {
			return pathErr("rename", toVirtual, ErrAlreadyExists)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return translate("rename", toVirtual, err)
	}

	// The store replaces an existing target itself, so a refused rename
	// leaves both names as they were.
	if err := v.client.Rename(ctx, fromAbs, toAbs, v.policy.Overwrite); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return pathErr("rename", toVirtual, ErrAlreadyExists)
		}
		return translate("rename", fromVirtual, err)
	}
	logger.Debug("[%s] %s renamed %s to %s", s.ID, s.User.Name, fromVirtual, toVirtual)
	return nil
}

// SetModTime sets the modification time (MFMT).
func (v *View) SetModTime(ctx context.Context, s Session, p string, mtime time.Time) error {
	abs, virtual, err := v.resolveForWrite("mfmt", s, p)
	if err != nil {
		return err
	}
	return translate("mfmt", virtual, v.client.SetModTime(ctx, abs, mtime))
}

// Chmod sets permission bits (SITE CHMOD).
func (v *View) Chmod(ctx context.Context, s Session, p string, mode fs.FileMode) error {
	abs, virtual, err := v.resolveForWrite("chmod", s, p)
	if err != nil {
		return err
	}
	return translate("chmod", virtual, v.client.SetPermission(ctx, abs, mode.Perm()))
}

// ============================================================================
// Streams
// ============================================================================

// OpenForRead opens a file for download starting at offset.
func (v *View) OpenForRead(ctx context.Context, s Session, p string, offset int64) (*ReadStream, error) {
	abs, virtual, err := v.resolve("open", s, p)
	if err != nil {
		return nil, err
	}
	info, err := v.stat(ctx, "open", abs, virtual)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, pathErr("open", virtual, ErrIsADirectory)
	}

	limiter := ratelimiter.New(s.User.MaxDownloadRate, 0)
	open := func(offset int64) (io.ReadCloser, error) {
		rc, err := v.client.OpenRead(ctx, abs, offset)
		if err != nil {
			return nil, translate("open", virtual, err)
		}
		return rc, nil
	}

	stream, err := newReadStream(ctx, virtual, offset, limiter, open)
	if err != nil {
		return nil, err
	}
	stream.onClose = func(n int64) {
		logger.Debug("[%s] %s downloaded %d bytes of %s", s.ID, s.User.Name, n, virtual)
	}
	return stream, nil
}

// OpenForWrite opens a file for upload. The parent directory must exist.
func (v *View) OpenForWrite(ctx context.Context, s Session, p string, mode WriteMode) (*WriteStream, error) {
	abs, virtual, err := v.resolveForWrite("create", s, p)
	if err != nil {
		return nil, err
	}
	if abs == s.Home() {
		return nil, pathErr("create", virtual, ErrIsADirectory)
	}
	if err := v.requireParent(ctx, "create", abs, virtual); err != nil {
		return nil, err
	}

	var existingSize int64
	exists := false
	info, err := v.client.Stat(ctx, abs)
	switch {
	case err == nil:
		if info.IsDir() {
			return nil, pathErr("create", virtual, ErrIsADirectory)
		}
		exists = true
		existingSize = info.Size
	case !errors.Is(err, fs.ErrNotExist):
		return nil, translate("create", virtual, err)
	}

	allowTruncate := !exists || v.policy.Overwrite
	if mode == WriteTruncate && !allowTruncate {
		return nil, pathErr("create", virtual, ErrAlreadyExists)
	}

	limiter := ratelimiter.New(s.User.MaxUploadRate, 0)
	open := func(appendMode bool) (io.WriteCloser, error) {
		wc, err := v.client.OpenWrite(ctx, abs, appendMode)
		if err != nil {
			return nil, translate("create", virtual, err)
		}
		return wc, nil
	}

	stream, err := newWriteStream(ctx, virtual, mode, existingSize, allowTruncate, limiter, open)
	if err != nil {
		return nil, err
	}
	stream.onClose = func(n int64, err error) {
		if err != nil {
			logger.Warn("[%s] upload of %s by %s failed after %d bytes: %v", s.ID, virtual, s.User.Name, n, err)
			return
		}
		if !exists {
			v.chown(context.WithoutCancel(ctx), s, abs)
		}
		logger.Debug("[%s] %s uploaded %d bytes to %s", s.ID, s.User.Name, n, virtual)
	}
	return stream, nil
}

// ============================================================================
// Hash
// ============================================================================

// Hash streams the file through the named algorithm and returns lower-case
// hex. Supported: SHA-256, SHA-512, SHA-1, MD5, CRC32.
func (v *View) Hash(ctx context.Context, s Session, p string, algo string) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", pathErr("hash", p, err)
	}

	stream, err := v.OpenForRead(ctx, s, p, 0)
	if err != nil {
		return "", err
	}
	defer func() { _ = stream.Close() }()

	if _, err := io.Copy(h, stream); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func newHash(algo string) (hash.Hash, error) {
	switch strings.ToUpper(algo) {
	case "SHA-256", "SHA256":
		return sha256.New(), nil
	case "SHA-512", "SHA512":
		return sha512.New(), nil
	case "SHA-1", "SHA1":
		return sha1.New(), nil
	case "MD5":
		return md5.New(), nil
	case "CRC32":
		return crc32.NewIEEE(), nil
	default:
		return nil, ErrNotSupported
	}
}
