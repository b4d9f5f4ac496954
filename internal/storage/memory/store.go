// Package memory stores uploaded objects in-memory. Tests and dry runs use
// it to assert on exactly what a run persisted.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store keeps buckets and objects in maps. Uploading into a bucket that was
// never ensured fails, so tests catch ordering mistakes in finalize logic.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{buckets: make(map[string]map[string][]byte)}
}

// EnsureBucket creates the bucket map when absent.
func (s *Store) EnsureBucket(_ context.Context, bucket string) error {
	if bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string][]byte)
	}
	return nil
}

// Upload reads the local file and stores it under its base filename.
func (s *Store) Upload(_ context.Context, bucket, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", localPath, err)
	}

	object := filepath.Base(localPath)
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return "", fmt.Errorf("bucket %s does not exist", bucket)
	}
	objects[object] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s/%s", bucket, object), nil
}

// Object returns a stored object's content.
func (s *Store) Object(bucket, object string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, false
	}
	data, ok := objects[object]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Objects lists a bucket's object names, sorted.
func (s *Store) Objects(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects := s.buckets[bucket]
	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasBucket reports whether the bucket was ensured.
func (s *Store) HasBucket(bucket string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[bucket]
	return ok
}
