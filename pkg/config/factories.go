package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/ftpbridge/internal/logger"
	"github.com/marmos91/ftpbridge/pkg/metrics/prometheus"
	"github.com/marmos91/ftpbridge/pkg/remote"
	"github.com/marmos91/ftpbridge/pkg/remote/aferofs"
	remoteBadger "github.com/marmos91/ftpbridge/pkg/remote/badger"
	remoteHDFS "github.com/marmos91/ftpbridge/pkg/remote/hdfs"
	remoteS3 "github.com/marmos91/ftpbridge/pkg/remote/s3"
	"github.com/mitchellh/mapstructure"
)

// RemoteURI is a parsed remote.uri value.
//
// It is parsed by hand rather than with net/url: HDFS HA deployments list
// several namenodes in the authority ("nn1:8020,nn2:8020").
type RemoteURI struct {
	Scheme string
	Host   string
	Path   string
}

// ParseRemoteURI splits uri into scheme, authority and path.
func ParseRemoteURI(uri string) (RemoteURI, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(uri), "://")
	if !ok || scheme == "" {
		return RemoteURI{}, fmt.Errorf("invalid remote URI %q: expected scheme://...", uri)
	}

	host, path := rest, ""
	if i := strings.Index(rest, "/"); i >= 0 {
		host, path = rest[:i], rest[i:]
	}
	return RemoteURI{
		Scheme: strings.ToLower(scheme),
		Host:   host,
		Path:   remote.Clean(path),
	}, nil
}

// validateRemoteURI checks what can be checked without contacting the store.
func validateRemoteURI(uri string) error {
	u, err := ParseRemoteURI(uri)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "hdfs":
		if u.Host == "" {
			return errors.New("hdfs URI requires at least one namenode address")
		}
	case "s3":
		if u.Host == "" {
			return errors.New("s3 URI requires a bucket name")
		}
	case "badger":
		if u.Host != "memory" && (u.Host != "" || remote.IsRoot(u.Path)) {
			return errors.New("badger URI must be badger:///path/to/db or badger://memory")
		}
	case "file":
		if u.Host != "" || remote.IsRoot(u.Path) {
			return errors.New("file URI must be file:///path/to/dir")
		}
	case "mem":
	default:
		return fmt.Errorf("unsupported scheme %q (supported: hdfs, s3, badger, file, mem)", u.Scheme)
	}
	return nil
}

// CreateRemoteClient creates the remote filesystem client based on configuration.
//
// The URI scheme determines which backend is created; backend-specific
// options are decoded from the matching section of cfg:
//   - "hdfs": pkg/remote/hdfs, connected as the superuser
//   - "s3": pkg/remote/s3 (Amazon S3 or compatible storage)
//   - "badger": pkg/remote/badger (embedded BadgerDB)
//   - "file": pkg/remote/aferofs over a local directory
//   - "mem": pkg/remote/aferofs in memory (tests and demos)
//
// The returned client reports every call to the remote metrics, which are
// no-ops unless metrics were initialized first.
func CreateRemoteClient(ctx context.Context, cfg *RemoteConfig) (remote.Client, error) {
	u, err := ParseRemoteURI(cfg.URI)
	if err != nil {
		return nil, err
	}

	var client remote.Client
	switch u.Scheme {
	case "hdfs":
		client, err = createHDFSClient(u, cfg.Superuser)
	case "s3":
		client, err = createS3Client(ctx, u, cfg.S3)
	case "badger":
		client, err = createBadgerClient(ctx, u, cfg.Badger)
	case "file":
		client, err = aferofs.NewBasePath(u.Path)
	case "mem":
		client = aferofs.NewMemory()
	default:
		return nil, fmt.Errorf("unknown remote store scheme: %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	return remote.Instrument(client, prometheus.NewRemoteMetrics(backendLabel(u.Scheme))), nil
}

func backendLabel(scheme string) string {
	switch scheme {
	case "file", "mem":
		return "afero"
	default:
		return scheme
	}
}

// createHDFSClient connects to the namenodes listed in the URI authority.
func createHDFSClient(u RemoteURI, superuser string) (remote.Client, error) {
	var addresses []string
	for _, a := range strings.Split(u.Host, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}

	client, err := remoteHDFS.New(remoteHDFS.Config{
		Addresses: addresses,
		User:      superuser,
		Root:      u.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HDFS client: %w", err)
	}
	return client, nil
}

// createS3Client creates an S3-backed client for the bucket in the URI.
func createS3Client(ctx context.Context, u RemoteURI, options map[string]any) (remote.Client, error) {
	type S3RemoteConfig struct {
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		PartSize        int64  `mapstructure:"part_size"`
		Concurrency     int    `mapstructure:"concurrency"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3RemoteConfig
	if err := mapstructure.WeakDecode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 config: %w", err)
	}

	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 remote store: remote.s3.region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	// Static credentials if provided, otherwise the default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storeCfg.AccessKeyID, storeCfg.SecretAccessKey, ""),
		))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create the remote client
	// ========================================================================

	prefix := strings.TrimPrefix(u.Path, "/")
	client, err := remoteS3.New(remoteS3.Config{
		Client:      api,
		Bucket:      u.Host,
		KeyPrefix:   prefix,
		PartSize:    storeCfg.PartSize,
		Concurrency: storeCfg.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	logger.Info("S3 remote store initialized: bucket=%s, region=%s, prefix=%s",
		u.Host, storeCfg.Region, prefix)

	return client, nil
}

// createBadgerClient opens the embedded store at the URI path.
func createBadgerClient(ctx context.Context, u RemoteURI, options map[string]any) (remote.Client, error) {
	type BadgerRemoteOptions struct {
		ChunkSize        int   `mapstructure:"chunk_size"`
		BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`
	}

	var storeOpts BadgerRemoteOptions
	if err := mapstructure.WeakDecode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger options: %w", err)
	}

	client, err := remoteBadger.New(ctx, remoteBadger.Config{
		Path:             u.Path,
		InMemory:         u.Host == "memory",
		ChunkSize:        storeOpts.ChunkSize,
		BlockCacheSizeMB: storeOpts.BlockCacheSizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}
	return client, nil
}

// HealthCheck stats the store root. Startup aborts when it fails.
func HealthCheck(ctx context.Context, client remote.Client) error {
	info, err := client.Stat(ctx, "/")
	if err != nil {
		return fmt.Errorf("remote store health check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("remote store health check failed: root is not a directory")
	}
	return nil
}
