package robot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/bundle"
)

// FinalizeConfig controls artifact shipping and local cleanup.
type FinalizeConfig struct {
	Bucket           string
	LogsArchive      string
	DataArchive      string
	CleanupOnFailure bool
}

// Finalizer ships run artifacts to the object store and clears local state.
type Finalizer struct {
	store  ObjectStore
	retry  RetryPolicy
	pauser pauser
	logger *zap.Logger
	cfg    FinalizeConfig
}

// NewFinalizer constructs a Finalizer. Archive base names default to the
// original robot's bundle names.
func NewFinalizer(store ObjectStore, retry RetryPolicy, cfg FinalizeConfig, logger *zap.Logger) *Finalizer {
	if cfg.LogsArchive == "" {
		cfg.LogsArchive = "robot-logs"
	}
	if cfg.DataArchive == "" {
		cfg.DataArchive = "financial-data"
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{
		store:  store,
		retry:  retry,
		pauser: timerPauser{},
		logger: logger,
		cfg:    cfg,
	}
}

// Finalize uploads the driver log, the zipped logs, the run-log CSV, and the
// zipped downloads, in that order, then removes local run state. A failed
// step aborts the remainder and leaves local files in place for manual
// recovery unless cleanup-on-failure is set.
func (f *Finalizer) Finalize(ctx context.Context, rc RunContext, runLog string) (err error) {
	defer func() {
		if err != nil && f.cfg.CleanupOnFailure {
			f.cleanup(rc)
		}
	}()

	if err = f.store.EnsureBucket(ctx, f.cfg.Bucket); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", f.cfg.Bucket, err)
	}

	if err = f.uploadIfPresent(ctx, rc.DriverLogPath); err != nil {
		return err
	}

	logsZip := filepath.Join(rc.WorkDir, f.cfg.LogsArchive+".zip")
	if err = bundle.Build(logsZip, rc.LogsDir); err != nil {
		return fmt.Errorf("bundle logs: %w", err)
	}
	if err = f.upload(ctx, logsZip); err != nil {
		return err
	}

	// The run-log CSV also ships unbundled so operators can read it without
	// unzipping.
	if err = f.uploadIfPresent(ctx, runLog); err != nil {
		return err
	}

	dataZip := filepath.Join(rc.WorkDir, f.cfg.DataArchive+".zip")
	if err = bundle.Build(dataZip, rc.DownloadsDir); err != nil {
		return fmt.Errorf("bundle downloads: %w", err)
	}
	if err = f.upload(ctx, dataZip); err != nil {
		return err
	}

	f.cleanup(rc)
	return nil
}

// upload ships one file, retrying per the backoff policy.
func (f *Finalizer) upload(ctx context.Context, path string) error {
	object := filepath.Base(path)
	var lastErr error
	for attempt := 0; ; attempt++ {
		uri, err := f.store.Upload(ctx, f.cfg.Bucket, path)
		if err == nil {
			uploadsCompleted.Inc()
			f.logger.Info("artifact uploaded",
				zap.String("object", object),
				zap.String("uri", uri),
			)
			return nil
		}
		lastErr = err
		if !f.retry.ShouldRetry(err, attempt+1) {
			break
		}
		f.logger.Warn("upload retry",
			zap.String("object", object),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		f.pauser.Pause(ctx, f.retry.Backoff(attempt))
	}
	uploadsFailed.Inc()
	return &UploadError{Object: object, Err: lastErr}
}

// uploadIfPresent skips files that never materialized, like the driver log
// of a session that produced no output.
func (f *Finalizer) uploadIfPresent(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			f.logger.Debug("skipping absent artifact", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return f.upload(ctx, path)
}

// cleanup removes the run's local state. Removal errors are logged and
// swallowed; a leftover file must not turn a shipped run into a failure.
func (f *Finalizer) cleanup(rc RunContext) {
	for _, dir := range []string{rc.DownloadsDir, rc.LogsDir} {
		if err := os.RemoveAll(dir); err != nil {
			f.logger.Warn("cleanup failed", zap.String("path", dir), zap.Error(err))
		}
	}
	for _, pattern := range []string{"*.zip", "*.log"} {
		matches, err := filepath.Glob(filepath.Join(rc.WorkDir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil {
				f.logger.Warn("cleanup failed", zap.String("path", path), zap.Error(err))
			}
		}
	}
	f.logger.Info("local run state removed",
		zap.String("downloads", rc.DownloadsDir),
		zap.String("logs", rc.LogsDir),
	)
}
