package remote

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// Observer receives one callback per remote call.
type Observer interface {
	ObserveRemote(op string, duration time.Duration, err error)
}

// Instrument wraps c so every call is reported to obs. Streams are observed
// when they are opened, not per Read/Write.
func Instrument(c Client, obs Observer) Client {
	if obs == nil {
		return c
	}
	return &instrumented{Client: c, obs: obs}
}

type instrumented struct {
	Client
	obs Observer
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	i.obs.ObserveRemote(op, time.Since(start), err)
}

func (i *instrumented) Stat(ctx context.Context, name string) (info *FileInfo, err error) {
	defer func(start time.Time) { i.observe("stat", start, err) }(time.Now())
	return i.Client.Stat(ctx, name)
}

func (i *instrumented) List(ctx context.Context, name string) (infos []*FileInfo, err error) {
	defer func(start time.Time) { i.observe("list", start, err) }(time.Now())
	return i.Client.List(ctx, name)
}

func (i *instrumented) OpenRead(ctx context.Context, name string, offset int64) (rc io.ReadCloser, err error) {
	defer func(start time.Time) { i.observe("open_read", start, err) }(time.Now())
	return i.Client.OpenRead(ctx, name, offset)
}

func (i *instrumented) OpenWrite(ctx context.Context, name string, append bool) (wc io.WriteCloser, err error) {
	defer func(start time.Time) { i.observe("open_write", start, err) }(time.Now())
	return i.Client.OpenWrite(ctx, name, append)
}

func (i *instrumented) Rename(ctx context.Context, from, to string, overwrite bool) (err error) {
	defer func(start time.Time) { i.observe("rename", start, err) }(time.Now())
	return i.Client.Rename(ctx, from, to, overwrite)
}

func (i *instrumented) Remove(ctx context.Context, name string, recursive bool) (err error) {
	defer func(start time.Time) { i.observe("remove", start, err) }(time.Now())
	return i.Client.Remove(ctx, name, recursive)
}

func (i *instrumented) Mkdir(ctx context.Context, name string, perm fs.FileMode) (err error) {
	defer func(start time.Time) { i.observe("mkdir", start, err) }(time.Now())
	return i.Client.Mkdir(ctx, name, perm)
}

func (i *instrumented) SetOwner(ctx context.Context, name, owner, group string) (err error) {
	defer func(start time.Time) { i.observe("set_owner", start, err) }(time.Now())
	return i.Client.SetOwner(ctx, name, owner, group)
}

func (i *instrumented) SetPermission(ctx context.Context, name string, perm fs.FileMode) (err error) {
	defer func(start time.Time) { i.observe("set_permission", start, err) }(time.Now())
	return i.Client.SetPermission(ctx, name, perm)
}

func (i *instrumented) SetModTime(ctx context.Context, name string, mtime time.Time) (err error) {
	defer func(start time.Time) { i.observe("set_mod_time", start, err) }(time.Now())
	return i.Client.SetModTime(ctx, name, mtime)
}
