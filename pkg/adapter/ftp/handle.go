package ftp

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/marmos91/ftpbridge/pkg/metrics"
	"github.com/marmos91/ftpbridge/pkg/vfs"
)

const (
	directionDownload = metrics.DirectionDownload
	directionUpload   = metrics.DirectionUpload
)

var errWrongDirection = errors.New("stream is not open in this direction")

// handle is the io.ReadWriteCloser (and io.Seeker) the engine transfers
// through. Exactly one of reader and writer is set.
type handle struct {
	owner     *clientContext
	reader    *vfs.ReadStream
	writer    *vfs.WriteStream
	direction string

	bytes    atomic.Int64
	once     sync.Once
	closeErr error
}

func (h *handle) Read(p []byte) (int, error) {
	if h.reader == nil {
		return 0, errWrongDirection
	}
	n, err := h.reader.Read(p)
	h.bytes.Add(int64(n))
	return n, err
}

func (h *handle) Write(p []byte) (int, error) {
	if h.writer == nil {
		return 0, errWrongDirection
	}
	n, err := h.writer.Write(p)
	h.bytes.Add(int64(n))
	return n, err
}

// Seek carries the REST offset to the stream.
func (h *handle) Seek(offset int64, whence int) (int64, error) {
	var (
		pos int64
		err error
	)
	if h.reader != nil {
		pos, err = h.reader.Seek(offset, whence)
	} else {
		pos, err = h.writer.Seek(offset, whence)
	}
	return pos, engineError(err)
}

// Close finalizes the stream once, from the engine or from the session
// teardown, whichever comes first.
func (h *handle) Close() error {
	h.once.Do(func() {
		if h.reader != nil {
			h.closeErr = h.reader.Close()
		} else {
			h.closeErr = h.writer.Close()
		}
		h.owner.untrack(h)
		h.owner.driver.metrics.RecordBytes(h.direction, h.bytes.Load())
		h.closeErr = engineError(h.closeErr)
	})
	return h.closeErr
}
