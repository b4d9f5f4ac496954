package robot

import (
	"context"
	"time"
)

// WorklistSource yields the tickers a run should process.
type WorklistSource interface {
	Read(ctx context.Context) ([]string, error)
}

// ObjectStore persists run artifacts in a bucket.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, path string) (string, error)
}

// ResultStore records per-ticker outcomes for later inspection.
type ResultStore interface {
	RecordFetch(ctx context.Context, runID string, result FetchResult) error
	Close() error
}

// Notifier publishes the final run report to interested parties.
type Notifier interface {
	Publish(ctx context.Context, report RunReport) error
	Close() error
}

// AuditLog records timestamped activity rows for the run's CSV trail.
type AuditLog interface {
	Log(tag, message string)
	Completion()
	Path() string
	Close() error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher produces a hex digest of a file on disk.
type Hasher interface {
	HashFile(path string) (string, error)
}
