package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

const (
	dirMode  = fs.ModeDir | 0o755
	fileMode = fs.FileMode(0o644)
)

func fileInfo(name string, size int64, mtime *time.Time) *remote.FileInfo {
	return &remote.FileInfo{Path: name, Size: size, ModTime: aws.ToTime(mtime), Mode: fileMode}
}

func dirInfo(name string, mtime *time.Time) *remote.FileInfo {
	return &remote.FileInfo{Path: name, ModTime: aws.ToTime(mtime), Mode: dirMode}
}

func (c *Client) OpenRead(ctx context.Context, name string, offset int64) (io.ReadCloser, error) {
	info, err := c.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, remote.PathErr("open", name, remote.ErrIsDir)
	}
	if offset >= info.Size {
		return io.NopCloser(strings.NewReader("")), nil
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(name)),
	}
	if offset > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}

	out, err := c.api.GetObject(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, remote.NotExist("open", name)
		}
		return nil, remote.PathErr("open", name, err)
	}
	return out.Body, nil
}

// OpenWrite starts a streaming upload. For append, the current object is
// streamed into the new upload before any caller data.
func (c *Client) OpenWrite(ctx context.Context, name string, append bool) (io.WriteCloser, error) {
	if err := c.requireParent(ctx, "create", name); err != nil {
		return nil, err
	}

	var existing io.ReadCloser
	info, err := c.Stat(ctx, name)
	switch {
	case err == nil && info.IsDir():
		return nil, remote.PathErr("create", name, remote.ErrIsDir)
	case err == nil && append:
		if existing, err = c.OpenRead(ctx, name, 0); err != nil {
			return nil, err
		}
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &uploadWriter{name: name, pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.objectKey(name)),
			Body:   pr,
		})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	if existing != nil {
		_, err := io.Copy(pw, existing)
		_ = existing.Close()
		if err != nil {
			_ = pw.CloseWithError(err)
			<-w.done
			return nil, remote.PathErr("append", name, err)
		}
	}
	return w, nil
}

// uploadWriter feeds an in-flight upload. The object appears on Close.
type uploadWriter struct {
	name string
	pw   *io.PipeWriter
	done chan error

	once sync.Once
	err  error
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	if err != nil {
		return n, remote.PathErr("write", w.name, err)
	}
	return n, nil
}

func (w *uploadWriter) Close() error {
	w.once.Do(func() {
		_ = w.pw.Close()
		if err := <-w.done; err != nil {
			w.err = remote.PathErr("close", w.name, err)
		}
	})
	return w.err
}
