// Package badger implements remote.Client on an embedded BadgerDB.
//
// The store keeps a flat namespace of absolute paths. Every entry has a
// metadata record; file content lives in fixed-size chunks keyed by a blob id
// that the metadata record points to, so renames only touch metadata.
//
// Key schema:
//
//	m:<path>                 JSON-encoded entry (directory or file)
//	c:<blob>\x00<index>      content chunk, index is a big-endian uint64
//
// Writes go to a fresh blob (or extend the current one when appending) and
// become visible atomically when the writer is closed. Readers pin a read-only
// transaction, so a concurrent overwrite never tears an in-progress download.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

const (
	metaPrefix  = "m:"
	chunkPrefix = "c:"

	// DefaultChunkSize is the content chunk size used when Config.ChunkSize is 0.
	DefaultChunkSize = 1 << 20
)

// Config configures a badger-backed client.
type Config struct {
	// Path is the directory holding the database files. Ignored when InMemory.
	Path string

	// InMemory keeps everything in RAM. Used by tests and "badger://memory".
	InMemory bool

	// ChunkSize is the content chunk size in bytes (default: 1 MiB).
	ChunkSize int

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64).
	BlockCacheSizeMB int64
}

// Client is a remote.Client over BadgerDB.
//
// Structural mutations (create, rename, remove) are serialized by mu so that
// the existence checks and the transaction that follows see the same tree.
type Client struct {
	mu        sync.Mutex
	db        *badger.DB
	chunkSize int
}

var _ remote.Client = (*Client)(nil)

// entry is the persisted metadata record.
type entry struct {
	Dir     bool        `json:"dir,omitempty"`
	Size    int64       `json:"size"`
	ModTime time.Time   `json:"mtime"`
	Mode    fs.FileMode `json:"mode"`
	Owner   string      `json:"owner,omitempty"`
	Group   string      `json:"group,omitempty"`
	Blob    string      `json:"blob,omitempty"`
}

// New opens (or creates) the database and makes sure the root exists.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger store requires a path")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	opts = opts.WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(blockCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %q: %w", cfg.Path, err)
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	c := &Client{db: db, chunkSize: chunkSize}
	if err := c.initializeRoot(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize root: %w", err)
	}
	return c, nil
}

func (c *Client) initializeRoot() error {
	return c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey("/"))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putEntry(txn, "/", &entry{Dir: true, Mode: fs.ModeDir | 0o755, ModTime: now()})
	})
}

// Close closes the database.
func (c *Client) Close() error {
	return c.db.Close()
}

// ============================================================================
// Keys and encoding
// ============================================================================

func metaKey(name string) []byte {
	return []byte(metaPrefix + name)
}

// descendantPrefix matches every entry strictly below dir.
func descendantPrefix(dir string) []byte {
	if dir == "/" {
		return []byte(metaPrefix + "/")
	}
	return []byte(metaPrefix + dir + "/")
}

func blobPrefix(blob string) []byte {
	return []byte(chunkPrefix + blob + "\x00")
}

func chunkKey(blob string, index int64) []byte {
	key := blobPrefix(blob)
	return binary.BigEndian.AppendUint64(key, uint64(index))
}

func getEntry(txn *badger.Txn, name string) (*entry, error) {
	item, err := txn.Get(metaKey(name))
	if err != nil {
		return nil, err
	}
	var e entry
	err = item.Value(func(val []byte) error {
		return unmarshalEntry(val, &e)
	})
	if err != nil {
		return nil, fmt.Errorf("corrupt entry %q: %w", name, err)
	}
	return &e, nil
}

func putEntry(txn *badger.Txn, name string, e *entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return txn.Set(metaKey(name), data)
}

func unmarshalEntry(data []byte, e *entry) error {
	return json.Unmarshal(data, e)
}

func (e *entry) info(name string) *remote.FileInfo {
	return &remote.FileInfo{
		Path:    name,
		Size:    e.Size,
		ModTime: e.ModTime,
		Mode:    e.Mode,
		Owner:   e.Owner,
		Group:   e.Group,
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// lookup translates badger's not-found into a path error.
func lookup(txn *badger.Txn, op, name string) (*entry, error) {
	e, err := getEntry(txn, name)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, remote.NotExist(op, name)
	}
	if err != nil {
		return nil, remote.PathErr(op, name, err)
	}
	return e, nil
}

// requireParent fails unless the parent of name exists and is a directory.
func requireParent(txn *badger.Txn, op, name string) error {
	parent, err := getEntry(txn, remote.Parent(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return remote.NotExist(op, name)
	}
	if err != nil {
		return remote.PathErr(op, name, err)
	}
	if !parent.Dir {
		return remote.PathErr(op, name, remote.ErrNotDir)
	}
	return nil
}

// ============================================================================
// Queries
// ============================================================================

func (c *Client) Stat(ctx context.Context, name string) (*remote.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = remote.Clean(name)

	var info *remote.FileInfo
	err := c.db.View(func(txn *badger.Txn) error {
		e, err := lookup(txn, "stat", name)
		if err != nil {
			return err
		}
		info = e.info(name)
		return nil
	})
	return info, err
}

func (c *Client) List(ctx context.Context, name string) ([]*remote.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = remote.Clean(name)

	var infos []*remote.FileInfo
	err := c.db.View(func(txn *badger.Txn) error {
		dir, err := lookup(txn, "list", name)
		if err != nil {
			return err
		}
		if !dir.Dir {
			return remote.PathErr("list", name, remote.ErrNotDir)
		}

		prefix := descendantPrefix(name)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys iterate in byte order, which is name order within a directory.
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rest := string(item.Key()[len(prefix):])
			if rest == "" || strings.Contains(rest, "/") {
				continue
			}
			var e entry
			if err := item.Value(func(val []byte) error {
				return unmarshalEntry(val, &e)
			}); err != nil {
				return remote.PathErr("list", name, err)
			}
			infos = append(infos, e.info(string(item.Key()[len(metaPrefix):])))
		}
		return nil
	})
	return infos, err
}
