package robot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/robot"
)

func fastPoller(maxAttempts int) *robot.Poller {
	return robot.NewPoller(5*time.Millisecond, maxAttempts, 2*time.Second, zap.NewNop())
}

func TestAwaitFindsPresentWorkbook(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := filepath.Join(dir, "Financial_Report.xlsx")
	require.NoError(t, os.WriteFile(want, []byte("done"), 0o600))

	var nudges atomic.Int32
	nudge := func(context.Context) error { nudges.Add(1); return nil }

	got, attempts, err := fastPoller(40).Await(context.Background(), dir, nudge)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, nudges.Load(), "a present file needs no nudge")
}

// The poller must not report completion before the workbook exists, and the
// export is re-triggered on every miss.
func TestAwaitDetectsDelayedWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := filepath.Join(dir, "report.xlsx")

	var nudges atomic.Int32
	nudge := func(context.Context) error {
		// The third re-click finally lands the download.
		if nudges.Add(1) == 3 {
			return os.WriteFile(want, []byte("late"), 0o600)
		}
		return nil
	}

	got, attempts, err := fastPoller(40).Await(context.Background(), dir, nudge)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.GreaterOrEqual(t, attempts, 4)
	assert.EqualValues(t, 3, nudges.Load())
}

// In-flight Chrome downloads carry a .crdownload suffix and must not count
// as completed.
func TestAwaitIgnoresInFlightDownloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	staged := filepath.Join(dir, "Financial_Report.xlsx.crdownload")
	require.NoError(t, os.WriteFile(staged, []byte("partial"), 0o600))

	_, attempts, err := fastPoller(3).Await(context.Background(), dir, nil)
	var timeoutErr *robot.DownloadTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, dir, timeoutErr.Dir)
}

func TestAwaitAttemptBound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, attempts, err := fastPoller(5).Await(context.Background(), dir, nil)

	var timeoutErr *robot.DownloadTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, timeoutErr.Attempts)
	assert.Greater(t, timeoutErr.Waited, time.Duration(0))
}

func TestAwaitElapsedBound(t *testing.T) {
	t.Parallel()

	poller := robot.NewPoller(5*time.Millisecond, 10_000, 25*time.Millisecond, zap.NewNop())
	_, _, err := poller.Await(context.Background(), t.TempDir(), nil)

	var timeoutErr *robot.DownloadTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.GreaterOrEqual(t, timeoutErr.Waited, 25*time.Millisecond)
}

// Nudge failures are tolerated; the download may already be in flight.
func TestAwaitNudgeFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := filepath.Join(dir, "report.xlsx")

	var nudges atomic.Int32
	nudge := func(context.Context) error {
		if nudges.Add(1) == 2 {
			require.NoError(t, os.WriteFile(want, []byte("arrived anyway"), 0o600))
		}
		return errors.New("stale element reference")
	}

	got, _, err := fastPoller(40).Await(context.Background(), dir, nudge)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAwaitContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := fastPoller(40).Await(ctx, t.TempDir(), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitMissingDirectory(t *testing.T) {
	t.Parallel()

	_, _, err := fastPoller(3).Await(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan downloads")
}
