package ftp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"
	"testing"
	"time"

	jftp "github.com/jlaffaye/ftp"
	"github.com/marmos91/ftpbridge/pkg/remote/aferofs"
	"github.com/marmos91/ftpbridge/pkg/users"
	"github.com/marmos91/ftpbridge/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startAdapter serves a fresh in-memory tree and returns its address.
func startAdapter(t *testing.T) string {
	t.Helper()

	client := aferofs.NewMemory()
	for _, dir := range []string{"/home", "/home/alice", "/home/bob"} {
		require.NoError(t, client.Mkdir(t.Context(), dir, 0o755))
	}
	store, err := users.NewStoreFromBytes([]byte(testUsers), users.EncodingClear)
	require.NoError(t, err)

	a, err := New(Config{ShutdownTimeout: 5 * time.Second}, vfs.NewView(client, vfs.DefaultPolicy()), store, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("adapter did not stop")
		}
	})

	require.Eventually(t, func() bool { return a.Port() != 0 }, 5*time.Second, 10*time.Millisecond)
	return fmt.Sprintf("127.0.0.1:%d", a.Port())
}

func dial(t *testing.T, addr, user string) *jftp.ServerConn {
	t.Helper()
	conn, err := jftp.Dial(addr, jftp.DialWithTimeout(5*time.Second))
	require.NoError(t, err)
	require.NoError(t, conn.Login(user, "secret"))
	t.Cleanup(func() { _ = conn.Quit() })
	return conn
}

func replyCode(err error) int {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code
	}
	return 0
}

func retr(t *testing.T, conn *jftp.ServerConn, path string) string {
	t.Helper()
	r, err := conn.Retr(path)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return string(data)
}

func TestE2E_Session(t *testing.T) {
	addr := startAdapter(t)
	conn := dial(t, addr, "alice")

	dir, err := conn.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/", dir)

	// Escaping the home directory is refused and the cwd is kept.
	err = conn.ChangeDirToParent()
	require.Error(t, err)
	assert.Equal(t, 550, replyCode(err))
	dir, _ = conn.CurrentDir()
	assert.Equal(t, "/", dir)

	require.NoError(t, conn.MakeDir("docs"))
	require.NoError(t, conn.ChangeDir("docs"))
	require.NoError(t, conn.Stor("report.txt", strings.NewReader("quarterly numbers")))

	entries, err := conn.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "report.txt", entries[0].Name)
	assert.Equal(t, uint64(len("quarterly numbers")), entries[0].Size)

	size, err := conn.FileSize("report.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len("quarterly numbers")), size)

	assert.Equal(t, "quarterly numbers", retr(t, conn, "/docs/report.txt"))

	r, err := conn.RetrFrom("report.txt", 10)
	require.NoError(t, err)
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "numbers", string(rest))

	require.NoError(t, conn.Append("report.txt", strings.NewReader("!")))
	assert.Equal(t, "quarterly numbers!", retr(t, conn, "report.txt"))

	// RNFR/RNTO into a missing directory fails and leaves the source.
	err = conn.Rename("report.txt", "missing/report.txt")
	require.Error(t, err)
	assert.Equal(t, 550, replyCode(err))
	assert.Equal(t, "quarterly numbers!", retr(t, conn, "report.txt"))

	require.NoError(t, conn.Rename("report.txt", "/final.txt"))
	require.NoError(t, conn.ChangeDirToParent())

	err = conn.RemoveDir("/")
	assert.Equal(t, 550, replyCode(err))
	require.NoError(t, conn.RemoveDir("docs"))
	require.NoError(t, conn.Delete("final.txt"))

	names, err := conn.NameList("")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestE2E_LoginFailures(t *testing.T) {
	addr := startAdapter(t)

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong"},
		{"bob", "secret"},
		{"mallory", "secret"},
	} {
		conn, err := jftp.Dial(addr, jftp.DialWithTimeout(5*time.Second))
		require.NoError(t, err)
		err = conn.Login(tc.user, tc.pass)
		require.Error(t, err, tc.user)
		assert.Equal(t, 530, replyCode(err), tc.user)
		_ = conn.Quit()
	}
}

// failingReader delivers n bytes and then fails, simulating a client that
// drops the data connection mid-upload.
type failingReader struct {
	r io.Reader
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, errors.New("client went away")
	}
	return n, err
}

func TestE2E_InterruptedUploadThenOverwrite(t *testing.T) {
	addr := startAdapter(t)
	payload := bytes.Repeat([]byte("x"), 100)

	first := dial(t, addr, "alice")
	err := first.Stor("report.txt", &failingReader{r: bytes.NewReader(payload[:10])})
	require.Error(t, err)

	second := dial(t, addr, "alice")
	require.NoError(t, second.Stor("report.txt", bytes.NewReader(payload)))
	assert.Equal(t, string(payload), retr(t, second, "report.txt"))
}

func TestE2E_ReadOnlyUser(t *testing.T) {
	addr := startAdapter(t)

	alice := dial(t, addr, "alice")
	require.NoError(t, alice.Stor("shared.txt", strings.NewReader("shared")))

	reader := dial(t, addr, "reader")
	assert.Equal(t, "shared", retr(t, reader, "shared.txt"))
	err := reader.Stor("nope.txt", strings.NewReader("x"))
	assert.Equal(t, 550, replyCode(err))
	err = reader.MakeDir("nope")
	assert.Equal(t, 550, replyCode(err))
}
