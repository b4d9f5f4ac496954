package robot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Poller waits for the asynchronous workbook download to land on disk.
type Poller struct {
	interval    time.Duration
	maxAttempts int
	maxWait     time.Duration
	pauser      pauser
	logger      *zap.Logger
}

// NewPoller builds a Poller with the original cadence as defaults: a 3s
// interval, bounded at 40 attempts and two minutes of waiting.
func NewPoller(interval time.Duration, maxAttempts int, maxWait time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 40
	}
	if maxWait <= 0 {
		maxWait = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		interval:    interval,
		maxAttempts: maxAttempts,
		maxWait:     maxWait,
		pauser:      timerPauser{},
		logger:      logger,
	}
}

// Await scans dir until a finished workbook appears and returns its path with
// the number of polls spent. On each miss it invokes nudge to re-trigger the
// export; nudge failures are logged and ignored since the download may
// already be in flight. Exhausting either bound returns a
// DownloadTimeoutError.
func (p *Poller) Await(ctx context.Context, dir string, nudge func(context.Context) error) (string, int, error) {
	start := time.Now()
	attempts := 0
	for {
		attempts++
		pollTicks.Inc()

		path, err := findWorkbook(dir)
		if err != nil {
			return "", attempts, err
		}
		if path != "" {
			p.logger.Debug("workbook arrived",
				zap.String("path", path),
				zap.Int("attempts", attempts),
			)
			return path, attempts, nil
		}

		waited := time.Since(start)
		if attempts >= p.maxAttempts || waited >= p.maxWait {
			return "", attempts, &DownloadTimeoutError{Dir: dir, Waited: waited, Attempts: attempts}
		}

		if nudge != nil {
			if err := nudge(ctx); err != nil {
				p.logger.Debug("download nudge failed", zap.Error(err))
			}
		}
		p.pauser.Pause(ctx, p.interval)
		if err := ctx.Err(); err != nil {
			return "", attempts, err
		}
	}
}

// findWorkbook returns the first finished .xlsx in dir. Chrome stages
// in-flight downloads with a .crdownload suffix, so a bare .xlsx match only
// fires once the file is fully written.
func findWorkbook(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan downloads: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".xlsx") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", nil
}
