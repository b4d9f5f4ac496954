// Package minio implements the object store against a MinIO or S3-compatible
// endpoint. This is the robot's default backend.
package minio

import (
	"context"
	"fmt"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/storage"
)

// Config captures the endpoint credentials for a MinIO deployment.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Store uploads run bundles to MinIO.
type Store struct {
	client *miniogo.Client
	logger *zap.Logger
}

// New builds a MinIO-backed store. The connection is lazy; bad credentials
// surface on the first bucket call.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &Store{client: client, logger: logger}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
		// lost a creation race; the bucket existing is all that matters
		exists, checkErr := s.client.BucketExists(ctx, bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	s.logger.Info("bucket created", zap.String("bucket", bucket))
	return nil
}

// Upload stores the file under its base filename and returns an s3:// URI.
func (s *Store) Upload(ctx context.Context, bucket, localPath string) (string, error) {
	object := filepath.Base(localPath)
	info, err := s.client.FPutObject(ctx, bucket, object, localPath, miniogo.PutObjectOptions{
		ContentType: storage.ContentTypeFor(localPath),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to %s: %w", object, bucket, err)
	}
	s.logger.Info("object uploaded",
		zap.String("bucket", bucket),
		zap.String("object", object),
		zap.Int64("bytes", info.Size),
	)
	return fmt.Sprintf("s3://%s/%s", bucket, object), nil
}
