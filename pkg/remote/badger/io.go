package badger

import (
	"context"
	"errors"
	"fmt"
	"io"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

func (c *Client) OpenRead(ctx context.Context, name string, offset int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = remote.Clean(name)

	txn := c.db.NewTransaction(false)
	e, err := lookup(txn, "open", name)
	if err != nil {
		txn.Discard()
		return nil, err
	}
	if e.Dir {
		txn.Discard()
		return nil, remote.PathErr("open", name, remote.ErrIsDir)
	}
	if offset < 0 {
		offset = 0
	}

	return &reader{
		txn:       txn,
		name:      name,
		blob:      e.Blob,
		size:      e.Size,
		pos:       offset,
		chunkSize: int64(c.chunkSize),
		current:   -1,
	}, nil
}

func (c *Client) OpenWrite(ctx context.Context, name string, append bool) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = remote.Clean(name)

	w := &writer{client: c, name: name, chunkSize: c.chunkSize}

	err := c.db.View(func(txn *badger.Txn) error {
		if err := requireParent(txn, "create", name); err != nil {
			return err
		}
		existing, err := getEntry(txn, name)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return remote.PathErr("create", name, err)
		}
		if existing.Dir {
			return remote.PathErr("create", name, remote.ErrIsDir)
		}
		w.previous = existing
		if !append || existing.Blob == "" {
			return nil
		}

		// Continue the existing blob, starting with its partial last chunk.
		w.blob = existing.Blob
		w.size = existing.Size
		w.index = existing.Size / int64(c.chunkSize)
		if tail := existing.Size % int64(c.chunkSize); tail > 0 {
			item, err := txn.Get(chunkKey(existing.Blob, w.index))
			if err != nil {
				return remote.PathErr("append", name, err)
			}
			chunk, err := item.ValueCopy(nil)
			if err != nil {
				return remote.PathErr("append", name, err)
			}
			w.buf = chunk[:tail]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if w.blob == "" {
		w.blob = uuid.NewString()
	}
	return w, nil
}

// ============================================================================
// Reader
// ============================================================================

type reader struct {
	txn       *badger.Txn
	name      string
	blob      string
	size      int64
	pos       int64
	chunkSize int64

	current int64
	chunk   []byte
}

func (r *reader) Read(p []byte) (int, error) {
	if r.txn == nil {
		return 0, remote.PathErr("read", r.name, errors.New("read on closed file"))
	}
	if r.pos >= r.size {
		return 0, io.EOF
	}

	index := r.pos / r.chunkSize
	if index != r.current {
		item, err := r.txn.Get(chunkKey(r.blob, index))
		if err != nil {
			return 0, remote.PathErr("read", r.name, fmt.Errorf("chunk %d: %w", index, err))
		}
		chunk, err := item.ValueCopy(r.chunk[:0])
		if err != nil {
			return 0, remote.PathErr("read", r.name, err)
		}
		r.chunk = chunk
		r.current = index
	}

	start := r.pos - index*r.chunkSize
	end := min(int64(len(r.chunk)), r.size-index*r.chunkSize)
	if start >= end {
		return 0, remote.PathErr("read", r.name, io.ErrUnexpectedEOF)
	}

	n := copy(p, r.chunk[start:end])
	r.pos += int64(n)
	return n, nil
}

func (r *reader) Close() error {
	if r.txn != nil {
		r.txn.Discard()
		r.txn = nil
	}
	return nil
}

// ============================================================================
// Writer
// ============================================================================

type writer struct {
	client    *Client
	name      string
	blob      string
	chunkSize int

	previous *entry
	size     int64
	index    int64
	buf      []byte
	err      error
	closed   bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, remote.PathErr("write", w.name, errors.New("write on closed file"))
	}
	if w.err != nil {
		return 0, w.err
	}

	w.buf = append(w.buf, p...)
	for len(w.buf) >= w.chunkSize {
		if err := w.flushChunk(w.buf[:w.chunkSize]); err != nil {
			w.err = err
			return 0, err
		}
		w.buf = append(w.buf[:0], w.buf[w.chunkSize:]...)
		w.index++
	}
	w.size += int64(len(p))
	return len(p), nil
}

func (w *writer) flushChunk(data []byte) error {
	key := chunkKey(w.blob, w.index)
	err := w.client.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, append([]byte(nil), data...))
	})
	if err != nil {
		return remote.PathErr("write", w.name, err)
	}
	return nil
}

// Close flushes the last chunk and publishes the new content.
func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.err != nil {
		w.discard()
		return w.err
	}
	if len(w.buf) > 0 {
		if err := w.flushChunk(w.buf); err != nil {
			w.discard()
			return err
		}
	}

	c := w.client
	c.mu.Lock()
	defer c.mu.Unlock()

	var garbage string
	err := c.db.Update(func(txn *badger.Txn) error {
		if err := requireParent(txn, "close", w.name); err != nil {
			return err
		}

		e := &entry{Mode: 0o644}
		current, err := getEntry(txn, w.name)
		switch {
		case err == nil:
			if current.Dir {
				return remote.PathErr("close", w.name, remote.ErrIsDir)
			}
			e.Mode, e.Owner, e.Group = current.Mode, current.Owner, current.Group
			if current.Blob != "" && current.Blob != w.blob {
				garbage = current.Blob
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return remote.PathErr("close", w.name, err)
		}

		e.Size = w.size
		e.ModTime = now()
		e.Blob = w.blob
		return putEntry(txn, w.name, e)
	})
	if err != nil {
		w.discard()
		return err
	}

	if garbage != "" {
		c.collectGarbage(garbage)
	}
	return nil
}

// discard drops chunks of a blob that never got published.
func (w *writer) discard() {
	if w.previous != nil && w.previous.Blob == w.blob {
		return
	}
	w.client.collectGarbage(w.blob)
}
