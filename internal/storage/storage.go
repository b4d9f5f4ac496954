// Package storage holds the object-store backends run bundles are uploaded
// to. Each subpackage implements the same surface: ensure a bucket exists,
// upload a local file under its base filename, return a URI. The no-op
// backend lives here for dry runs.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ContentTypeFor maps a local filename to the MIME type its upload carries.
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return "application/zip"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".log", ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// NoOpStore discards uploads while keeping run semantics intact, so dry runs
// still exercise bundling and cleanup.
type NoOpStore struct {
	logger *zap.Logger
}

// NewNoOpStore creates a store that logs and discards.
func NewNoOpStore(logger *zap.Logger) *NoOpStore {
	return &NoOpStore{logger: logger}
}

// EnsureBucket succeeds without side effects.
func (s *NoOpStore) EnsureBucket(_ context.Context, bucket string) error {
	s.logger.Debug("noop ensure bucket", zap.String("bucket", bucket))
	return nil
}

// Upload stats the file so missing artifacts still surface, then discards it.
func (s *NoOpStore) Upload(_ context.Context, bucket, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}
	object := filepath.Base(localPath)
	s.logger.Info("noop upload discarded",
		zap.String("bucket", bucket),
		zap.String("object", object),
		zap.Int64("bytes", info.Size()),
	)
	return fmt.Sprintf("noop://%s/%s", bucket, object), nil
}
