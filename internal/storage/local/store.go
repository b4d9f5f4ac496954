// Package local implements the object store on the local filesystem, with
// buckets as directories. Useful for development and air-gapped runs.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory buckets live under.
	BaseDir string `mapstructure:"base_dir"`
}

// Store writes run bundles to directories under a base path.
type Store struct {
	baseDir string
}

// New validates the base directory (existence, type, writability) and builds
// the store.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// EnsureBucket creates the bucket directory when it does not exist yet.
func (s *Store) EnsureBucket(_ context.Context, bucket string) error {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create bucket dir %s: %w", bucket, err)
	}
	return nil
}

// Upload copies the file into the bucket directory under its base filename
// and returns a file:// URI.
func (s *Store) Upload(_ context.Context, bucket, localPath string) (string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("bucket %s: %w", bucket, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close() //nolint:errcheck // read-only handle

	destPath := filepath.Join(dir, filepath.Base(localPath))
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		_ = dest.Close()
		return "", fmt.Errorf("copy to %s: %w", destPath, err)
	}
	if err := dest.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", destPath, err)
	}

	return fmt.Sprintf("file://%s", destPath), nil
}

// bucketDir resolves the bucket path and rejects names that escape baseDir.
func (s *Store) bucketDir(bucket string) (string, error) {
	if strings.TrimSpace(bucket) == "" {
		return "", fmt.Errorf("bucket name is required")
	}
	full := filepath.Join(s.baseDir, bucket)
	cleanBase := filepath.Clean(s.baseDir)
	cleanFull := filepath.Clean(full)
	if !strings.HasPrefix(cleanFull, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("bucket name escapes base directory")
	}
	return full, nil
}
