package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

func (c *Client) Mkdir(ctx context.Context, name string, perm fs.FileMode) error {
	if err := c.requireParent(ctx, "mkdir", name); err != nil {
		return err
	}
	if _, err := c.Stat(ctx, name); err == nil {
		return remote.Exist("mkdir", name)
	}

	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.dirPrefix(name)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return remote.PathErr("mkdir", name, err)
	}
	return nil
}

// Rename copies then deletes. A failure part way through a directory rename
// leaves objects under both names; nothing is deleted until every copy
// succeeded. A file target is replaced by the copy itself, so a failed copy
// leaves it intact.
func (c *Client) Rename(ctx context.Context, from, to string, overwrite bool) error {
	from, to = remote.Clean(from), remote.Clean(to)
	if remote.IsRoot(from) {
		return remote.PathErr("rename", from, fs.ErrPermission)
	}
	if from != to && remote.Within(to, from) {
		return remote.PathErr("rename", to, fs.ErrInvalid)
	}

	info, err := c.Stat(ctx, from)
	if err != nil {
		return err
	}
	if err := c.requireParent(ctx, "rename", to); err != nil {
		return err
	}
	if dst, err := c.Stat(ctx, to); err == nil {
		if err := remote.CheckReplace("rename", to, info, dst, overwrite); err != nil {
			return err
		}
	}

	if !info.IsDir() {
		if err := c.copyObject(ctx, c.objectKey(from), c.objectKey(to)); err != nil {
			return remote.PathErr("rename", from, err)
		}
		return c.deleteKeys(ctx, "rename", from, []string{c.objectKey(from)})
	}

	srcPrefix, dstPrefix := c.dirPrefix(from), c.dirPrefix(to)
	keys, err := c.keysUnder(ctx, srcPrefix)
	if err != nil {
		return remote.PathErr("rename", from, err)
	}
	if len(keys) == 0 {
		// Implicit directories vanish with their last object; keep the target.
		if err := c.putMarker(ctx, dstPrefix); err != nil {
			return remote.PathErr("rename", to, err)
		}
	}
	for _, key := range keys {
		if err := c.copyObject(ctx, key, dstPrefix+strings.TrimPrefix(key, srcPrefix)); err != nil {
			return remote.PathErr("rename", from, err)
		}
	}
	return c.deleteKeys(ctx, "rename", from, keys)
}

func (c *Client) Remove(ctx context.Context, name string, recursive bool) error {
	name = remote.Clean(name)
	if remote.IsRoot(name) {
		return remote.PathErr("remove", name, fs.ErrPermission)
	}

	info, err := c.Stat(ctx, name)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return c.deleteKeys(ctx, "remove", name, []string{c.objectKey(name)})
	}

	prefix := c.dirPrefix(name)
	keys, err := c.keysUnder(ctx, prefix)
	if err != nil {
		return remote.PathErr("remove", name, err)
	}
	for _, key := range keys {
		if key != prefix && !recursive {
			return remote.PathErr("remove", name, remote.ErrNotEmpty)
		}
	}
	return c.deleteKeys(ctx, "remove", name, keys)
}

// SetOwner is not supported: objects have no per-object owner name.
func (c *Client) SetOwner(ctx context.Context, name, owner, group string) error {
	return remote.PathErr("chown", name, remote.ErrUnsupported)
}

// SetPermission is not supported: access is governed by bucket policy.
func (c *Client) SetPermission(ctx context.Context, name string, perm fs.FileMode) error {
	return remote.PathErr("chmod", name, remote.ErrUnsupported)
}

// SetModTime is not supported: LastModified is assigned by the service.
func (c *Client) SetModTime(ctx context.Context, name string, mtime time.Time) error {
	return remote.PathErr("chtimes", name, remote.ErrUnsupported)
}

func (c *Client) Close() error {
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (c *Client) requireParent(ctx context.Context, op, name string) error {
	parent, err := c.Stat(ctx, remote.Parent(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return remote.NotExist(op, name)
		}
		return err
	}
	if !parent.IsDir() {
		return remote.PathErr(op, name, remote.ErrNotDir)
	}
	return nil
}

func (c *Client) putMarker(ctx context.Context, key string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	return err
}

func (c *Client) copyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		CopySource: aws.String(copySource(c.bucket, srcKey)),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

// copySource URL-encodes "bucket/key" segment by segment.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// keysUnder lists every object key beginning with prefix.
func (c *Client) keysUnder(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (c *Client) deleteKeys(ctx context.Context, op, name string, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return remote.PathErr(op, name, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return remote.PathErr(op, name, fmt.Errorf("delete %s: %s", aws.ToString(first.Key), aws.ToString(first.Message)))
		}
	}
	return nil
}
