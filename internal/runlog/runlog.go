// Package runlog writes the auditable CSV activity trail for one run.
package runlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// header matches the original activity log column set.
var header = []string{"idx", "ts", "bot", "tag", "message"}

// Writer appends timestamped activity rows to a CSV file, flushing after
// every row so the trail is complete even if the process dies mid-run.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	csv    *csv.Writer
	bot    string
	path   string
	idx    int
	now    func() time.Time
	logger *zap.Logger
	closed bool
}

// New creates <dir>/<bot>-run-<runID>.csv and writes the header row.
func New(dir, bot, runID string, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-run-%s.csv", bot, runID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- path assembled from config
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	w := &Writer{
		file:   f,
		csv:    csv.NewWriter(f),
		bot:    bot,
		path:   path,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	if err := w.writeRow(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Log appends one activity row. Write failures are logged and swallowed; the
// audit trail must never take the run down.
func (w *Writer) Log(tag, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.idx++
	row := []string{
		strconv.Itoa(w.idx),
		w.now().Format(time.RFC3339),
		w.bot,
		tag,
		message,
	}
	if err := w.writeRow(row); err != nil {
		w.logger.Warn("run log write failed", zap.Error(err))
		return
	}
	w.logger.Debug("activity", zap.String("tag", tag), zap.String("message", message))
}

// Completion writes the terminal execution row the original robot emitted.
func (w *Writer) Completion() {
	w.Log("execution", "robot run complete")
}

// Path returns the CSV location for individual upload.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and closes the file. Safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush run log: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close run log: %w", closeErr)
	}
	return nil
}

func (w *Writer) writeRow(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("write run log row: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush run log row: %w", err)
	}
	return nil
}
