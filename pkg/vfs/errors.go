package vfs

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/marmos91/ftpbridge/pkg/remote"
)

// Errors returned by the view, always wrapped in a *PathError that carries the
// client-visible path. Callers classify with errors.Is.
var (
	ErrNotFound          = errors.New("no such file or directory")
	ErrAlreadyExists     = errors.New("file exists")
	ErrNotADirectory     = errors.New("not a directory")
	ErrIsADirectory      = errors.New("is a directory")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrPermission        = errors.New("permission denied")
	ErrOutsideHome       = errors.New("path is outside the home directory")
	ErrNotSupported      = errors.New("operation not supported")
)

// PathError records a failed view operation. Path is the path as the FTP
// client sees it; the remote path never appears in the message.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// TransferError is a remote I/O failure in the middle of a data transfer.
type TransferError struct {
	Op    string
	Path  string
	Bytes int64
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s failed after %d bytes: %v", e.Op, e.Path, e.Bytes, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// translate maps a remote client error onto the view taxonomy.
func translate(op, virtual string, err error) error {
	if err == nil {
		return nil
	}

	var sentinel error
	switch {
	case errors.Is(err, fs.ErrNotExist):
		sentinel = ErrNotFound
	case errors.Is(err, fs.ErrExist):
		sentinel = ErrAlreadyExists
	case errors.Is(err, fs.ErrPermission):
		sentinel = ErrPermission
	case errors.Is(err, remote.ErrNotEmpty):
		sentinel = ErrDirectoryNotEmpty
	case errors.Is(err, remote.ErrNotDir):
		sentinel = ErrNotADirectory
	case errors.Is(err, remote.ErrIsDir):
		sentinel = ErrIsADirectory
	case errors.Is(err, remote.ErrUnsupported):
		sentinel = ErrNotSupported
	default:
		// Keep the cause for logs but strip the remote path from it.
		var pe *fs.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		return &PathError{Op: op, Path: virtual, Err: err}
	}
	return &PathError{Op: op, Path: virtual, Err: sentinel}
}

func pathErr(op, virtual string, err error) error {
	return &PathError{Op: op, Path: virtual, Err: err}
}
