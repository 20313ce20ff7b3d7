package testing

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/marmos91/ftpbridge/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ClientTestSuite checks the remote.Client contract. It tests behaviour, not
// implementation details, so every backend runs the same suite.
//
// Usage:
//
//	func TestMyClient(t *testing.T) {
//	    suite := &remotetesting.ClientTestSuite{
//	        NewClient: func(t *testing.T) remote.Client {
//	            return mybackend.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type ClientTestSuite struct {
	// NewClient returns a client over an empty store. It is called once per
	// test for isolation.
	NewClient func(t *testing.T) remote.Client

	// SkipModTime disables the SetModTime check for stores that cannot set it.
	SkipModTime bool
}

// Run executes all tests in the suite.
func (suite *ClientTestSuite) Run(t *testing.T) {
	t.Run("Directories", suite.RunDirectoryTests)
	t.Run("ReadWrite", suite.RunReadWriteTests)
	t.Run("Rename", suite.RunRenameTests)
	t.Run("Remove", suite.RunRemoveTests)
	t.Run("Attributes", suite.RunAttributeTests)
}

func (suite *ClientTestSuite) client(t *testing.T) remote.Client {
	t.Helper()
	c := suite.NewClient(t)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// RunDirectoryTests covers Mkdir, Stat and List.
func (suite *ClientTestSuite) RunDirectoryTests(t *testing.T) {
	ctx := context.Background()

	t.Run("MkdirAndStat", func(t *testing.T) {
		c := suite.client(t)
		require.NoError(t, c.Mkdir(ctx, "/docs", 0o755))

		info, err := c.Stat(ctx, "/docs")
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, "docs", info.Name())
		assert.Equal(t, "/docs", info.Path)
	})

	t.Run("MkdirExisting", func(t *testing.T) {
		c := suite.client(t)
		require.NoError(t, c.Mkdir(ctx, "/docs", 0o755))
		assert.ErrorIs(t, c.Mkdir(ctx, "/docs", 0o755), fs.ErrExist)
	})

	t.Run("MkdirMissingParent", func(t *testing.T) {
		c := suite.client(t)
		assert.ErrorIs(t, c.Mkdir(ctx, "/missing/child", 0o755), fs.ErrNotExist)

		_, err := c.Stat(ctx, "/missing")
		assert.ErrorIs(t, err, fs.ErrNotExist, "parent must not be created implicitly")
	})

	t.Run("ListSorted", func(t *testing.T) {
		c := suite.client(t)
		require.NoError(t, c.Mkdir(ctx, "/d", 0o755))
		WriteFile(t, c, "/d/b.txt", []byte("bb"))
		WriteFile(t, c, "/d/a.txt", []byte("a"))
		require.NoError(t, c.Mkdir(ctx, "/d/sub", 0o755))

		entries, err := c.List(ctx, "/d")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names(entries))
		assert.Equal(t, int64(1), entries[0].Size)
		assert.True(t, entries[2].IsDir())
	})

	t.Run("ListMissing", func(t *testing.T) {
		c := suite.client(t)
		_, err := c.List(ctx, "/nope")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("ListFile", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/f.txt", []byte("x"))
		_, err := c.List(ctx, "/f.txt")
		assert.ErrorIs(t, err, remote.ErrNotDir)
	})

	t.Run("StatIdempotent", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/f.txt", []byte("hello"))

		first, err := c.Stat(ctx, "/f.txt")
		require.NoError(t, err)
		second, err := c.Stat(ctx, "/f.txt")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

// RunReadWriteTests covers OpenRead and OpenWrite.
func (suite *ClientTestSuite) RunReadWriteTests(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		c := suite.client(t)
		data := []byte("the quick brown fox jumps over the lazy dog")
		WriteFile(t, c, "/fox.txt", data)
		assert.Equal(t, data, ReadFile(t, c, "/fox.txt", 0))
	})

	t.Run("ReadAtOffset", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/digits.txt", []byte("0123456789"))
		assert.Equal(t, []byte("789"), ReadFile(t, c, "/digits.txt", 7))
	})

	t.Run("Overwrite", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/f.txt", []byte("a much longer original body"))
		WriteFile(t, c, "/f.txt", []byte("short"))
		assert.Equal(t, []byte("short"), ReadFile(t, c, "/f.txt", 0))
	})

	t.Run("Append", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/log.txt", []byte("one\n"))

		w, err := c.OpenWrite(ctx, "/log.txt", true)
		require.NoError(t, err)
		_, err = w.Write([]byte("two\n"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.Equal(t, []byte("one\ntwo\n"), ReadFile(t, c, "/log.txt", 0))
	})

	t.Run("WriteMissingParent", func(t *testing.T) {
		c := suite.client(t)
		_, err := c.OpenWrite(ctx, "/missing/f.txt", false)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("ReadMissing", func(t *testing.T) {
		c := suite.client(t)
		_, err := c.OpenRead(ctx, "/nope.txt", 0)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("ReadDirectory", func(t *testing.T) {
		c := suite.client(t)
		require.NoError(t, c.Mkdir(ctx, "/d", 0o755))
		_, err := c.OpenRead(ctx, "/d", 0)
		assert.ErrorIs(t, err, remote.ErrIsDir)
	})
}

// RunRenameTests covers Rename.
func (suite *ClientTestSuite) RunRenameTests(t *testing.T) {
	ctx := context.Background()

	t.Run("File", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/old.txt", []byte("payload"))
		require.NoError(t, c.Mkdir(ctx, "/sub", 0o755))

		require.NoError(t, c.Rename(ctx, "/old.txt", "/sub/new.txt", false))

		_, err := c.Stat(ctx, "/old.txt")
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Equal(t, []byte("payload"), ReadFile(t, c, "/sub/new.txt", 0))
	})

	t.Run("Directory", func(t *testing.T) {
		c := suite.client(t)
		require.NoError(t, c.Mkdir(ctx, "/a", 0o755))
		WriteFile(t, c, "/a/f.txt", []byte("inner"))

		require.NoError(t, c.Rename(ctx, "/a", "/b", false))

		assert.Equal(t, []byte("inner"), ReadFile(t, c, "/b/f.txt", 0))
		_, err := c.Stat(ctx, "/a")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("MissingSource", func(t *testing.T) {
		c := suite.client(t)
		assert.ErrorIs(t, c.Rename(ctx, "/nope", "/other", false), fs.ErrNotExist)
	})

	t.Run("MissingTargetParent", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/old.txt", []byte("keep me"))

		assert.ErrorIs(t, c.Rename(ctx, "/old.txt", "/sub/old.txt", false), fs.ErrNotExist)
		assert.Equal(t, []byte("keep me"), ReadFile(t, c, "/old.txt", 0))
	})

	t.Run("TargetExists", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/a.txt", []byte("a"))
		WriteFile(t, c, "/b.txt", []byte("b"))

		assert.ErrorIs(t, c.Rename(ctx, "/a.txt", "/b.txt", false), fs.ErrExist)
		assert.Equal(t, []byte("b"), ReadFile(t, c, "/b.txt", 0))
	})

	t.Run("TargetReplaced", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/a.txt", []byte("new content"))
		WriteFile(t, c, "/b.txt", []byte("old"))

		require.NoError(t, c.Rename(ctx, "/a.txt", "/b.txt", true))

		assert.Equal(t, []byte("new content"), ReadFile(t, c, "/b.txt", 0))
		_, err := c.Stat(ctx, "/a.txt")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("DirectoryNeverReplaced", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/a.txt", []byte("a"))
		require.NoError(t, c.Mkdir(ctx, "/dir", 0o755))
		require.NoError(t, c.Mkdir(ctx, "/other", 0o755))

		assert.ErrorIs(t, c.Rename(ctx, "/a.txt", "/dir", true), fs.ErrExist)
		assert.ErrorIs(t, c.Rename(ctx, "/other", "/a.txt", true), fs.ErrExist)
		assert.ErrorIs(t, c.Rename(ctx, "/other", "/dir", true), fs.ErrExist)
		assert.Equal(t, []byte("a"), ReadFile(t, c, "/a.txt", 0))
	})
}

// RunRemoveTests covers Remove.
func (suite *ClientTestSuite) RunRemoveTests(t *testing.T) {
	ctx := context.Background()

	t.Run("File", func(t *testing.T) {
		c := suite.client(t)
		WriteFile(t, c, "/f.txt", []byte("x"))
		require.NoError(t, c.Remove(ctx, "/f.txt", false))

		_, err := c.Stat(ctx, "/f.txt")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("EmptyDirectory", func(t *testing.T) {
		c := suite.client(t)
		require.NoError(t, c.Mkdir(ctx, "/d", 0o755))
		require.NoError(t, c.Remove(ctx, "/d", false))
	})

	t.Run("NonEmptyDirectory", func(t *testing.T) {
		c := suite.client(t)
		require.NoError(t, c.Mkdir(ctx, "/d", 0o755))
		WriteFile(t, c, "/d/only.txt", []byte("x"))

		assert.ErrorIs(t, c.Remove(ctx, "/d", false), remote.ErrNotEmpty)
		assert.Equal(t, []byte("x"), ReadFile(t, c, "/d/only.txt", 0))
	})

	t.Run("Recursive", func(t *testing.T) {
		c := suite.client(t)
		require.NoError(t, c.Mkdir(ctx, "/d", 0o755))
		require.NoError(t, c.Mkdir(ctx, "/d/e", 0o755))
		WriteFile(t, c, "/d/e/f.txt", []byte("x"))

		require.NoError(t, c.Remove(ctx, "/d", true))
		_, err := c.Stat(ctx, "/d/e/f.txt")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("Missing", func(t *testing.T) {
		c := suite.client(t)
		assert.ErrorIs(t, c.Remove(ctx, "/nope", false), fs.ErrNotExist)
	})
}

// RunAttributeTests covers SetPermission and SetModTime.
func (suite *ClientTestSuite) RunAttributeTests(t *testing.T) {
	ctx := context.Background()

	t.Run("SetModTime", func(t *testing.T) {
		if suite.SkipModTime {
			t.Skip("store cannot set modification times")
		}
		c := suite.client(t)
		WriteFile(t, c, "/f.txt", []byte("x"))

		mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, c.SetModTime(ctx, "/f.txt", mtime))

		info, err := c.Stat(ctx, "/f.txt")
		require.NoError(t, err)
		assert.True(t, info.ModTime.Equal(mtime), "got %v", info.ModTime)
	})

	t.Run("SetPermissionMissing", func(t *testing.T) {
		c := suite.client(t)
		err := c.SetPermission(ctx, "/nope", 0o600)
		assert.True(t, errors.Is(err, fs.ErrNotExist) || errors.Is(err, remote.ErrUnsupported), "got %v", err)
	})
}

// WriteFile creates name with data through OpenWrite.
func WriteFile(t *testing.T, c remote.Client, name string, data []byte) {
	t.Helper()
	w, err := c.OpenWrite(context.Background(), name, false)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

// ReadFile returns the content of name from offset.
func ReadFile(t *testing.T, c remote.Client, name string, offset int64) []byte {
	t.Helper()
	r, err := c.OpenRead(context.Background(), name, offset)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func names(entries []*remote.FileInfo) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}
