package remote

import (
	"errors"
	"io/fs"
	"syscall"
)

// Backend errors that have no io/fs equivalent.
//
// Backends wrap them (or the io/fs sentinels) with the operation and path:
//
//	return &fs.PathError{Op: "remove", Path: name, Err: remote.ErrNotEmpty}
var (
	// ErrNotEmpty indicates a non-recursive remove of a directory with children.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrNotDir indicates a directory operation on a file.
	ErrNotDir = errors.New("not a directory")

	// ErrIsDir indicates a file operation on a directory.
	ErrIsDir = errors.New("is a directory")

	// ErrUnsupported indicates the backend cannot perform the operation at all.
	ErrUnsupported = errors.New("operation not supported by remote store")
)

// NotExist returns a *fs.PathError wrapping fs.ErrNotExist.
func NotExist(op, name string) error {
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}

// Exist returns a *fs.PathError wrapping fs.ErrExist.
func Exist(op, name string) error {
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrExist}
}

// PathErr wraps err with op and name.
func PathErr(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// Classify rewraps a backend or OS error as a *fs.PathError carrying only the
// error class, so host paths and client internals never reach FTP replies.
// Errors it does not recognise keep their original value.
func Classify(op, name string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotExist(op, name)
	case errors.Is(err, fs.ErrExist):
		return Exist(op, name)
	case errors.Is(err, fs.ErrPermission):
		return PathErr(op, name, fs.ErrPermission)
	case errors.Is(err, ErrNotEmpty), errors.Is(err, syscall.ENOTEMPTY):
		return PathErr(op, name, ErrNotEmpty)
	case errors.Is(err, ErrNotDir), errors.Is(err, syscall.ENOTDIR):
		return PathErr(op, name, ErrNotDir)
	case errors.Is(err, ErrIsDir), errors.Is(err, syscall.EISDIR):
		return PathErr(op, name, ErrIsDir)
	default:
		return PathErr(op, name, err)
	}
}

// CheckReplace decides whether an existing target may be replaced by a
// rename. Only a file may replace a file, and only when overwrite is set.
func CheckReplace(op, to string, src, dst *FileInfo, overwrite bool) error {
	if !overwrite || src.IsDir() || dst.IsDir() {
		return Exist(op, to)
	}
	return nil
}
