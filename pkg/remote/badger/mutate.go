package badger

import (
	"context"
	"errors"
	"io/fs"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

func (c *Client) Mkdir(ctx context.Context, name string, perm fs.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = remote.Clean(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Update(func(txn *badger.Txn) error {
		if err := requireParent(txn, "mkdir", name); err != nil {
			return err
		}
		if _, err := txn.Get(metaKey(name)); err == nil {
			return remote.Exist("mkdir", name)
		}
		return putEntry(txn, name, &entry{Dir: true, Mode: fs.ModeDir | perm.Perm(), ModTime: now()})
	})
}

// Rename swaps the metadata records in one transaction; a replaced file's
// chunks are collected once it commits.
func (c *Client) Rename(ctx context.Context, from, to string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, to = remote.Clean(from), remote.Clean(to)
	if remote.IsRoot(from) {
		return remote.PathErr("rename", from, fs.ErrPermission)
	}
	if from != to && remote.Within(to, from) {
		return remote.PathErr("rename", to, fs.ErrInvalid)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var garbage string
	err := c.db.Update(func(txn *badger.Txn) error {
		src, err := lookup(txn, "rename", from)
		if err != nil {
			return err
		}
		if err := requireParent(txn, "rename", to); err != nil {
			return err
		}
		dst, err := getEntry(txn, to)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if dst != nil {
			if err := remote.CheckReplace("rename", to, src.info(from), dst.info(to), overwrite); err != nil {
				return err
			}
			if from == to {
				return nil
			}
			garbage = dst.Blob
		}

		if err := putEntry(txn, to, src); err != nil {
			return err
		}
		if err := txn.Delete(metaKey(from)); err != nil {
			return err
		}
		if !src.Dir {
			return nil
		}

		// Move every descendant record; chunks stay where they are.
		children, err := collectDescendants(txn, from)
		if err != nil {
			return err
		}
		for _, child := range children {
			newName := to + child.name[len(from):]
			if err := txn.Set(metaKey(newName), child.raw); err != nil {
				return err
			}
			if err := txn.Delete(metaKey(child.name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if garbage != "" {
		c.collectGarbage(garbage)
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, name string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = remote.Clean(name)
	if remote.IsRoot(name) {
		return remote.PathErr("remove", name, fs.ErrPermission)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var garbage []string
	err := c.db.Update(func(txn *badger.Txn) error {
		e, err := lookup(txn, "remove", name)
		if err != nil {
			return err
		}

		if e.Dir {
			children, err := collectDescendants(txn, name)
			if err != nil {
				return err
			}
			if len(children) > 0 && !recursive {
				return remote.PathErr("remove", name, remote.ErrNotEmpty)
			}
			for _, child := range children {
				if child.blob != "" {
					garbage = append(garbage, child.blob)
				}
				if err := txn.Delete(metaKey(child.name)); err != nil {
					return err
				}
			}
		} else if e.Blob != "" {
			garbage = append(garbage, e.Blob)
		}
		return txn.Delete(metaKey(name))
	})
	if err != nil {
		return err
	}

	c.collectGarbage(garbage...)
	return nil
}

// SetOwner records the owner and group names on the entry.
func (c *Client) SetOwner(ctx context.Context, name, owner, group string) error {
	return c.modify(ctx, "chown", name, func(e *entry) {
		if owner != "" {
			e.Owner = owner
		}
		if group != "" {
			e.Group = group
		}
	})
}

func (c *Client) SetPermission(ctx context.Context, name string, perm fs.FileMode) error {
	return c.modify(ctx, "chmod", name, func(e *entry) {
		e.Mode = e.Mode.Type() | perm.Perm()
	})
}

func (c *Client) SetModTime(ctx context.Context, name string, mtime time.Time) error {
	return c.modify(ctx, "chtimes", name, func(e *entry) {
		e.ModTime = mtime.UTC()
	})
}

func (c *Client) modify(ctx context.Context, op, name string, fn func(*entry)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = remote.Clean(name)

	return c.db.Update(func(txn *badger.Txn) error {
		e, err := lookup(txn, op, name)
		if err != nil {
			return err
		}
		fn(e)
		return putEntry(txn, name, e)
	})
}

// ============================================================================
// Helpers
// ============================================================================

type descendant struct {
	name string
	raw  []byte
	blob string
}

func collectDescendants(txn *badger.Txn, dir string) ([]descendant, error) {
	prefix := descendantPrefix(dir)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []descendant
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		name := string(item.Key()[len(metaPrefix):])
		if name == dir {
			continue
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		var e entry
		if err := unmarshalEntry(raw, &e); err != nil {
			return nil, remote.PathErr("scan", name, err)
		}
		out = append(out, descendant{name: name, raw: raw, blob: e.Blob})
	}
	return out, nil
}

// collectGarbage deletes the chunks of blobs no entry references anymore.
// Failures only leak space, so they are logged and not returned.
func (c *Client) collectGarbage(blobs ...string) {
	if len(blobs) == 0 {
		return
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()

	for _, blob := range blobs {
		var keys [][]byte
		err := c.db.View(func(txn *badger.Txn) error {
			prefix := blobPrefix(blob)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			return nil
		})
		if err != nil {
			logger.Warn("badger: failed to scan blob %s for deletion: %v", blob, err)
			continue
		}
		for _, key := range keys {
			if err := wb.Delete(key); err != nil {
				logger.Warn("badger: failed to delete chunk of blob %s: %v", blob, err)
			}
		}
	}

	if err := wb.Flush(); err != nil {
		logger.Warn("badger: failed to flush blob deletion: %v", err)
	}
}
