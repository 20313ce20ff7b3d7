package vfs

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/marmos91/ftpbridge/internal/ratelimiter"
)

// errSeekAfterTransfer is returned by Seek once bytes have moved.
var errSeekAfterTransfer = errors.New("seek is only supported before the transfer starts")

// ============================================================================
// ReadStream
// ============================================================================

// ReadStream is a download from the remote store.
//
// Seek is honoured only before the first Read, by reopening the remote handle
// at the requested offset; this is how a REST offset reaches the store.
// Close is idempotent and may be called from another goroutine to abort a
// transfer in progress.
type ReadStream struct {
	ctx     context.Context
	path    string
	open    func(offset int64) (io.ReadCloser, error)
	limiter *ratelimiter.RateLimiter

	rc      io.ReadCloser
	offset  int64
	started bool

	once     sync.Once
	closeErr error
	onClose  func(bytes int64)
	read     int64
}

func newReadStream(ctx context.Context, path string, offset int64, limiter *ratelimiter.RateLimiter,
	open func(offset int64) (io.ReadCloser, error)) (*ReadStream, error) {
	rc, err := open(offset)
	if err != nil {
		return nil, err
	}
	return &ReadStream{
		ctx:     ctx,
		path:    path,
		open:    open,
		limiter: limiter,
		rc:      rc,
		offset:  offset,
	}, nil
}

func (r *ReadStream) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, &TransferError{Op: "read", Path: r.path, Bytes: r.read, Err: err}
	}
	r.started = true

	n, err := r.rc.Read(p)
	if n > 0 {
		r.offset += int64(n)
		r.read += int64(n)
		if werr := r.limiter.WaitN(r.ctx, n); werr != nil {
			return n, &TransferError{Op: "read", Path: r.path, Bytes: r.read, Err: werr}
		}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &TransferError{Op: "read", Path: r.path, Bytes: r.read, Err: err}
	}
	return n, err
}

// Seek repositions the stream before the first Read. Only io.SeekStart and
// io.SeekCurrent are supported.
func (r *ReadStream) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.offset
	default:
		return r.offset, pathErr("seek", r.path, ErrNotSupported)
	}
	if offset == r.offset {
		return r.offset, nil
	}
	if r.started {
		return r.offset, pathErr("seek", r.path, errSeekAfterTransfer)
	}
	if offset < 0 {
		return r.offset, pathErr("seek", r.path, errors.New("negative offset"))
	}

	rc, err := r.open(offset)
	if err != nil {
		return r.offset, err
	}
	_ = r.rc.Close()
	r.rc = rc
	r.offset = offset
	return offset, nil
}

// Close releases the remote handle.
func (r *ReadStream) Close() error {
	r.once.Do(func() {
		if err := r.rc.Close(); err != nil {
			r.closeErr = &TransferError{Op: "close", Path: r.path, Bytes: r.read, Err: err}
		}
		if r.onClose != nil {
			r.onClose(r.read)
		}
	})
	return r.closeErr
}

// ============================================================================
// WriteStream
// ============================================================================

// WriteMode selects how OpenForWrite treats existing content.
type WriteMode int

const (
	// WriteTruncate replaces the file (STOR).
	WriteTruncate WriteMode = iota

	// WriteAppend appends to the file, creating it if needed (APPE).
	WriteAppend

	// WriteResume defers the decision to Seek: seeking to the current size
	// appends, seeking to 0 or writing without a seek truncates (REST+STOR).
	WriteResume
)

// WriteStream is an upload to the remote store. Bytes are handed to the
// remote handle as they arrive; Close finalizes the file.
type WriteStream struct {
	ctx     context.Context
	path    string
	open    func(append bool) (io.WriteCloser, error)
	limiter *ratelimiter.RateLimiter

	wc            io.WriteCloser
	existingSize  int64
	resumed       bool
	seekRefused   bool
	allowTruncate bool
	written       int64

	once     sync.Once
	closeErr error
	onClose  func(bytes int64, err error)
}

func newWriteStream(ctx context.Context, path string, mode WriteMode, existingSize int64, allowTruncate bool,
	limiter *ratelimiter.RateLimiter, open func(append bool) (io.WriteCloser, error)) (*WriteStream, error) {
	w := &WriteStream{
		ctx:           ctx,
		path:          path,
		open:          open,
		limiter:       limiter,
		existingSize:  existingSize,
		allowTruncate: allowTruncate,
	}
	if mode == WriteResume {
		return w, nil
	}

	wc, err := open(mode == WriteAppend)
	if err != nil {
		return nil, err
	}
	w.wc = wc
	return w, nil
}

// ensureOpen opens a resume-mode stream on first use.
func (w *WriteStream) ensureOpen() error {
	if w.wc != nil {
		return nil
	}
	if w.seekRefused {
		return pathErr("write", w.path, ErrNotSupported)
	}
	if !w.resumed && !w.allowTruncate {
		return pathErr("create", w.path, ErrAlreadyExists)
	}
	wc, err := w.open(w.resumed)
	if err != nil {
		return err
	}
	w.wc = wc
	return nil
}

func (w *WriteStream) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, &TransferError{Op: "write", Path: w.path, Bytes: w.written, Err: err}
	}
	if err := w.ensureOpen(); err != nil {
		return 0, err
	}
	if err := w.limiter.WaitN(w.ctx, len(p)); err != nil {
		return 0, &TransferError{Op: "write", Path: w.path, Bytes: w.written, Err: err}
	}

	n, err := w.wc.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, &TransferError{Op: "write", Path: w.path, Bytes: w.written, Err: err}
	}
	return n, nil
}

// Seek supports resuming an upload: offset 0 truncates and the current
// remote size appends. Remote stores cannot write at arbitrary offsets.
func (w *WriteStream) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		w.seekRefused = w.wc == nil
		return w.written, pathErr("seek", w.path, ErrNotSupported)
	}
	if w.wc != nil {
		if offset == 0 && w.written == 0 && !w.resumed {
			return 0, nil
		}
		return w.written, pathErr("seek", w.path, errSeekAfterTransfer)
	}

	switch offset {
	case 0:
		w.resumed = false
	case w.existingSize:
		w.resumed = true
	default:
		w.seekRefused = true
		return 0, pathErr("seek", w.path, ErrNotSupported)
	}
	w.seekRefused = false
	return offset, nil
}

// Close finalizes the upload and releases the remote handle. A resume-mode
// stream that never received a byte creates (or truncates to) an empty file
// unless it was positioned at the end of the existing content or its last
// seek was refused.
func (w *WriteStream) Close() error {
	w.once.Do(func() {
		if w.wc == nil && (w.resumed || w.seekRefused) {
			w.finish(nil)
			return
		}
		if err := w.ensureOpen(); err != nil {
			w.closeErr = err
			w.finish(err)
			return
		}
		if err := w.wc.Close(); err != nil {
			w.closeErr = &TransferError{Op: "close", Path: w.path, Bytes: w.written, Err: err}
		}
		w.finish(w.closeErr)
	})
	return w.closeErr
}

func (w *WriteStream) finish(err error) {
	if w.onClose != nil {
		w.onClose(w.written, err)
	}
}
