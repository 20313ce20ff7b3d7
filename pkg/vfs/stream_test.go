package vfs

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStream_SeekBeforeRead(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.put(t, f.alice, "a.txt", "0123456789")

	r, err := f.view.OpenForRead(t.Context(), f.alice, "a.txt", 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	pos, err := r.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos)

	pos, err = r.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	buf := make([]byte, 2)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "67", string(buf))

	_, err = r.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, errSeekAfterTransfer)

	// Seeking to the current position is always fine.
	pos, err = r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	_, err = r.Seek(0, io.SeekEnd)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestReadStream_CloseIdempotent(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.put(t, f.alice, "a.txt", "x")

	r, err := f.view.OpenForRead(t.Context(), f.alice, "a.txt", 0)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestReadStream_Cancelled(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.put(t, f.alice, "a.txt", "0123456789")

	ctx, cancel := context.WithCancel(t.Context())
	r, err := f.view.OpenForRead(ctx, f.alice, "a.txt", 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	cancel()
	_, err = r.Read(make([]byte, 4))
	var te *TransferError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadStream_RateLimited(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.put(t, f.alice, "a.txt", string(make([]byte, 300)))

	limited := f.alice
	u := *limited.User
	u.MaxDownloadRate = 100
	limited.User = &u

	start := time.Now()
	assert.Len(t, f.get(t, limited, "a.txt", 0), 300)
	assert.GreaterOrEqual(t, time.Since(start), 1500*time.Millisecond)
}

func TestWriteStream_Resume(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := t.Context()
	f.put(t, f.alice, "a.txt", "hello")

	w, err := f.view.OpenForWrite(ctx, f.alice, "a.txt", WriteResume)
	require.NoError(t, err)
	pos, err := w.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
	_, err = io.WriteString(w, " world")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "hello world", f.get(t, f.alice, "a.txt", 0))
}

func TestWriteStream_ResumeFromZeroTruncates(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.put(t, f.alice, "a.txt", "hello")

	w, err := f.view.OpenForWrite(t.Context(), f.alice, "a.txt", WriteResume)
	require.NoError(t, err)
	_, err = w.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.WriteString(w, "bye")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "bye", f.get(t, f.alice, "a.txt", 0))
}

func TestWriteStream_ResumeRejectsArbitraryOffset(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.put(t, f.alice, "a.txt", "hello")

	w, err := f.view.OpenForWrite(t.Context(), f.alice, "a.txt", WriteResume)
	require.NoError(t, err)
	_, err = w.Seek(3, io.SeekStart)
	assert.ErrorIs(t, err, ErrNotSupported)

	// Positioned at the end with nothing written leaves the file alone.
	_, err = w.Seek(5, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "hello", f.get(t, f.alice, "a.txt", 0))
}

func TestWriteStream_RefusedSeekKeepsContent(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.put(t, f.alice, "big.bin", "0123456789")

	// REST 5 + STOR: the engine opens without truncation, seeks, and closes
	// the handle when the seek fails.
	w, err := f.view.OpenForWrite(t.Context(), f.alice, "big.bin", WriteResume)
	require.NoError(t, err)
	_, err = w.Seek(5, io.SeekStart)
	require.ErrorIs(t, err, ErrNotSupported)

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNotSupported)
	require.NoError(t, w.Close())

	assert.Equal(t, "0123456789", f.get(t, f.alice, "big.bin", 0))
}

func TestWriteStream_RefusedRelativeSeekKeepsContent(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.put(t, f.alice, "a.txt", "hello")

	w, err := f.view.OpenForWrite(t.Context(), f.alice, "a.txt", WriteResume)
	require.NoError(t, err)
	_, err = w.Seek(0, io.SeekEnd)
	require.ErrorIs(t, err, ErrNotSupported)
	require.NoError(t, w.Close())

	assert.Equal(t, "hello", f.get(t, f.alice, "a.txt", 0))
}

func TestWriteStream_ResumeRespectsOverwritePolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.Overwrite = false
	f := newFixture(t, policy)
	f.put(t, f.alice, "a.txt", "hello")

	w, err := f.view.OpenForWrite(t.Context(), f.alice, "a.txt", WriteResume)
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.ErrorIs(t, w.Close(), ErrAlreadyExists)
	assert.Equal(t, "hello", f.get(t, f.alice, "a.txt", 0))
}

func TestWriteStream_SeekAfterWrite(t *testing.T) {
	f := newFixture(t, DefaultPolicy())

	w, err := f.view.OpenForWrite(t.Context(), f.alice, "a.txt", WriteTruncate)
	require.NoError(t, err)
	_, err = w.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.WriteString(w, "abc")
	require.NoError(t, err)

	_, err = w.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, errSeekAfterTransfer)
	_, err = w.Seek(0, io.SeekEnd)
	assert.ErrorIs(t, err, ErrNotSupported)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWriteStream_EmptyUploadCreatesFile(t *testing.T) {
	f := newFixture(t, DefaultPolicy())

	w, err := f.view.OpenForWrite(t.Context(), f.alice, "empty.txt", WriteResume)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entry, err := f.view.Stat(t.Context(), f.alice, "empty.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.Size())
}
