package ftp

import (
	"errors"
	"io/fs"

	"github.com/marmos91/ftpbridge/pkg/vfs"
)

// engineError maps the vfs taxonomy onto what the engine classifies with
// os.IsNotExist, os.IsPermission and os.IsExist. Those helpers compare the
// unwrapped error by identity, so the sentinel must sit directly inside
// the *fs.PathError. Anything else is passed through; vfs messages only
// carry client-visible paths.
func engineError(err error) error {
	if err == nil {
		return nil
	}

	var op, path string
	var pe *vfs.PathError
	if errors.As(err, &pe) {
		op, path = pe.Op, pe.Path
	}

	switch {
	case errors.Is(err, vfs.ErrNotFound):
		return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
	case errors.Is(err, vfs.ErrPermission), errors.Is(err, vfs.ErrOutsideHome):
		return &fs.PathError{Op: op, Path: path, Err: fs.ErrPermission}
	case errors.Is(err, vfs.ErrAlreadyExists):
		return &fs.PathError{Op: op, Path: path, Err: fs.ErrExist}
	default:
		return err
	}
}
