// Package storage opens the object-storage bucket the pipeline ships to.
// All backends are exposed as a gocloud.dev *blob.Bucket so the rest of the
// pipeline treats "put object" as an opaque capability.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	"gocloud.dev/blob/memblob"
	"gocloud.dev/blob/s3blob"
)

// Config selects and configures the storage backend.
type Config struct {
	Backend string // "s3" | "gcs" | "local" | "mem"

	// S3 (also works for B2, R2, MinIO via Endpoint)
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// Local filesystem
	LocalDir string
}

// OpenBucket creates the bucket for the configured backend.
func OpenBucket(ctx context.Context, cfg Config) (*blob.Bucket, error) {
	switch cfg.Backend {
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for s3 backend")
		}
		return openS3(ctx, cfg)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for gcs backend")
		}
		bucket, err := blob.OpenBucket(ctx, fmt.Sprintf("gs://%s", cfg.Bucket))
		if err != nil {
			return nil, fmt.Errorf("open GCS bucket %s: %w", cfg.Bucket, err)
		}
		return bucket, nil
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local_dir required for local backend")
		}
		return openLocal(cfg.LocalDir)
	case "mem":
		return memblob.OpenBucket(nil), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// openS3 builds an explicit S3 client so static credentials and custom
// endpoints (MinIO, R2, B2) work without touching process environment.
func openS3(ctx context.Context, cfg Config) (*blob.Bucket, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3v2.NewFromConfig(awsCfg, func(o *s3v2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	bucket, err := s3blob.OpenBucketV2(ctx, client, cfg.Bucket, nil)
	if err != nil {
		return nil, fmt.Errorf("open S3 bucket %s: %w", cfg.Bucket, err)
	}
	return bucket, nil
}

func openLocal(dir string) (*blob.Bucket, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve local dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create local dir %s: %w", abs, err)
	}
	bucket, err := fileblob.OpenBucket(abs, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("open local bucket %s: %w", abs, err)
	}
	return bucket, nil
}

// URI returns the canonical URI for a key in the configured backend,
// for diagnostics.
func (c Config) URI(key string) string {
	switch c.Backend {
	case "s3":
		return fmt.Sprintf("s3://%s/%s", c.Bucket, key)
	case "gcs":
		return fmt.Sprintf("gs://%s/%s", c.Bucket, key)
	case "local":
		return "file://" + filepath.Join(c.LocalDir, key)
	default:
		return key
	}
}
