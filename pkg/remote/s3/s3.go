// Package s3 implements remote.Client over Amazon S3 or an S3-compatible
// object store.
//
// Object keys mirror store paths below an optional prefix ("/a/b.txt" becomes
// "<prefix>a/b.txt"). Directories are zero-length marker objects whose key
// ends in "/"; a key prefix with objects below it but no marker is also
// reported as a directory, so buckets written by other tools stay browsable.
//
// S3 has no rename: renames copy every affected object and then delete the
// originals. Uploads stream through the multipart uploader and become visible
// when the writer is closed.
package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/ftpbridge/pkg/remote"
)

// API is the subset of *s3.Client the bridge uses.
type API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Config contains configuration for the S3 client.
type Config struct {
	// Client is the configured S3 client.
	Client API

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g. "ftp/".
	KeyPrefix string

	// PartSize is the multipart upload part size (default and minimum: 5MB).
	PartSize int64

	// Concurrency is the number of parts uploaded in parallel (default: 4).
	Concurrency int
}

// Client is a remote.Client over S3.
type Client struct {
	api      API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ remote.Client = (*Client)(nil)

// deleteBatchSize is the DeleteObjects limit.
const deleteBatchSize = 1000

// New creates an S3-backed client. It does not contact the service.
func New(cfg Config) (*Client, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = manager.MinUploadPartSize
	}
	if partSize < manager.MinUploadPartSize {
		return nil, fmt.Errorf("part size must be at least %d bytes, got %d", manager.MinUploadPartSize, partSize)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	prefix := strings.TrimPrefix(cfg.KeyPrefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	uploader := manager.NewUploader(cfg.Client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = concurrency
	})

	return &Client{
		api:      cfg.Client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   prefix,
	}, nil
}

// ============================================================================
// Keys
// ============================================================================

// objectKey is the key of a file at name.
func (c *Client) objectKey(name string) string {
	return c.prefix + strings.TrimPrefix(remote.Clean(name), "/")
}

// dirPrefix is the key prefix of everything below the directory name; for a
// non-root directory it is also the marker key.
func (c *Client) dirPrefix(name string) string {
	if remote.IsRoot(name) {
		return c.prefix
	}
	return c.objectKey(name) + "/"
}

// pathOf converts an object key back into a store path.
func (c *Client) pathOf(key string) string {
	return remote.Clean(strings.TrimSuffix(strings.TrimPrefix(key, c.prefix), "/"))
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}

// ============================================================================
// Queries
// ============================================================================

func (c *Client) Stat(ctx context.Context, name string) (*remote.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = remote.Clean(name)
	if remote.IsRoot(name) {
		return &remote.FileInfo{Path: "/", Mode: dirMode}, nil
	}

	head, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(name)),
	})
	if err == nil {
		return fileInfo(name, aws.ToInt64(head.ContentLength), head.LastModified), nil
	}
	if !isNotFound(err) {
		return nil, remote.PathErr("stat", name, err)
	}

	marker, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.dirPrefix(name)),
	})
	if err == nil {
		return dirInfo(name, marker.LastModified), nil
	}
	if !isNotFound(err) {
		return nil, remote.PathErr("stat", name, err)
	}

	// A prefix with objects below it is a directory without a marker.
	out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(c.dirPrefix(name)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, remote.PathErr("stat", name, err)
	}
	if len(out.Contents) > 0 {
		return dirInfo(name, nil), nil
	}
	return nil, remote.NotExist("stat", name)
}

func (c *Client) List(ctx context.Context, name string) ([]*remote.FileInfo, error) {
	dir, err := c.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, remote.PathErr("list", name, remote.ErrNotDir)
	}

	prefix := c.dirPrefix(name)
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var infos []*remote.FileInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, remote.PathErr("list", name, err)
		}
		for _, cp := range page.CommonPrefixes {
			infos = append(infos, dirInfo(c.pathOf(aws.ToString(cp.Prefix)), nil))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			infos = append(infos, fileInfo(c.pathOf(key), aws.ToInt64(obj.Size), obj.LastModified))
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}
