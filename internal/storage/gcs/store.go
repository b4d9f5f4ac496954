// Package gcs implements the object store on Google Cloud Storage.
// Authentication is handled via Application Default Credentials.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	objstore "github.com/finbots-io/edgarbot/internal/storage"
)

// Config captures the parameters required to manage GCS buckets.
type Config struct {
	// ProjectID owns buckets this store is asked to create.
	ProjectID string
}

// Store uploads run bundles to Google Cloud Storage.
type Store struct {
	client    *storage.Client
	projectID string
	logger    *zap.Logger
}

// New creates a GCS-backed store around an existing client.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	return &Store{
		client:    client,
		projectID: cfg.ProjectID,
		logger:    logger,
	}, nil
}

// EnsureBucket creates the bucket in the configured project when it does not
// exist yet.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.Bucket(bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("bucket attrs %s: %w", bucket, err)
	}
	if err := s.client.Bucket(bucket).Create(ctx, s.projectID, nil); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	s.logger.Info("bucket created", zap.String("bucket", bucket))
	return nil
}

// Upload stores the file under its base filename and returns a gs:// URI.
func (s *Store) Upload(ctx context.Context, bucket, localPath string) (string, error) {
	object := filepath.Base(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	writer := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = objstore.ContentTypeFor(localPath)
	if _, err := io.Copy(writer, f); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object %s: %w (close writer: %v)", object, err, closeErr)
		}
		return "", fmt.Errorf("copy object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", object, err)
	}
	s.logger.Info("object uploaded",
		zap.String("bucket", bucket),
		zap.String("object", object),
	)
	return fmt.Sprintf("gs://%s/%s", bucket, object), nil
}
