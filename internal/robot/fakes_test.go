// Package robot_test exercises the retrieval pipeline end to end against the
// scripted browser and in-memory backends.
package robot_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/browser"
	"github.com/finbots-io/edgarbot/internal/browser/scripted"
	"github.com/finbots-io/edgarbot/internal/clock/system"
	"github.com/finbots-io/edgarbot/internal/hash/sha256"
	"github.com/finbots-io/edgarbot/internal/robot"
)

// Scripted EDGAR page URLs. The navigation chain walks them in order.
const (
	searchURL  = "https://edgar.test/companysearch.html"
	filingsURL = "https://edgar.test/filings.html"
	viewerURL  = "https://edgar.test/viewer.html"
	deadEndURL = "https://edgar.test/outage.html"
)

// failingTicker makes the scripted company search dead-end, so its fetch
// fails at the filing-search step.
const failingTicker = "BADCO"

// workbookBytes is the payload the scripted export click downloads.
var workbookBytes = []byte("xlsx-workbook-bytes")

// --- fakes ---

type fakeIDs struct {
	mu sync.Mutex
	n  int
}

func (f *fakeIDs) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("test-id-%03d", f.n), nil
}

type sliceWorklist []string

func (w sliceWorklist) Read(context.Context) ([]string, error) {
	return append([]string(nil), w...), nil
}

type errWorklist struct{ err error }

func (w errWorklist) Read(context.Context) ([]string, error) { return nil, w.err }

type panicWorklist struct{}

func (panicWorklist) Read(context.Context) ([]string, error) { panic("worklist exploded") }

// noRetry never retries a failed upload.
type noRetry struct{}

func (noRetry) ShouldRetry(error, int) bool { return false }
func (noRetry) Backoff(int) time.Duration   { return 0 }

// zeroBackoffRetry retries up to attempts times without waiting.
type zeroBackoffRetry struct{ attempts int }

func (p zeroBackoffRetry) ShouldRetry(err error, attempt int) bool {
	return err != nil && attempt < p.attempts
}
func (zeroBackoffRetry) Backoff(int) time.Duration { return 0 }

// failingStore fails the configured operations.
type failingStore struct {
	ensureErr error
	uploadErr error
}

func (s *failingStore) EnsureBucket(context.Context, string) error { return s.ensureErr }

func (s *failingStore) Upload(_ context.Context, _ string, path string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	return "fail://" + filepath.Base(path), nil
}

// recordingStore wraps an ObjectStore, journaling successful uploads in
// order and optionally failing the first calls.
type recordingStore struct {
	inner robot.ObjectStore

	mu        sync.Mutex
	uploads   []string
	calls     int
	failFirst int
}

func (s *recordingStore) EnsureBucket(ctx context.Context, bucket string) error {
	return s.inner.EnsureBucket(ctx, bucket)
}

func (s *recordingStore) Upload(ctx context.Context, bucket, path string) (string, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if call <= s.failFirst {
		return "", errors.New("transient upload failure")
	}
	uri, err := s.inner.Upload(ctx, bucket, path)
	if err == nil {
		s.mu.Lock()
		s.uploads = append(s.uploads, filepath.Base(path))
		s.mu.Unlock()
	}
	return uri, err
}

func (s *recordingStore) Uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

func (s *recordingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// edgarSite scripts the whole EDGAR company-search flow: search box, filing
// type box, interactive-data button, and the Excel export link next to a
// decoy anchor. Clicking the export writes the workbook into the session's
// routed download directory once enough clicks landed.
type edgarSite struct {
	session *scripted.Session
	// exportClicksNeeded is how many export clicks must land before the
	// workbook materializes; 1 means the first click downloads.
	exportClicksNeeded int32
	exportClicks       atomic.Int32
}

func newEDGARSite() *edgarSite {
	site := &edgarSite{exportClicksNeeded: 1}
	sess := scripted.NewSession()
	site.session = sess

	sess.AddPage(searchURL, scripted.Stub{
		Tag: "input", Attr: "id", Value: "cik-search-box",
		OnSubmit: func(text string) error {
			if text == failingTicker {
				sess.Load(deadEndURL)
				return nil
			}
			sess.Load(filingsURL)
			return nil
		},
	})
	sess.AddPage(filingsURL, scripted.Stub{
		Tag: "input", Attr: "id", Value: "filing-type-box",
		OnSubmit: func(string) error {
			sess.Load(viewerURL)
			return nil
		},
	})
	sess.AddPage(viewerURL,
		scripted.Stub{
			Tag: "a", Attr: "id", Value: "interactiveDataBtn-1",
		},
		scripted.Stub{
			Tag: "a", Attr: "class", Value: "xbrlviewer", Text: "View Filing Data",
		},
		scripted.Stub{
			Tag: "a", Attr: "class", Value: "xbrlviewer", Text: "View Excel Document",
			OnClick: func(context.Context) error {
				if site.exportClicks.Add(1) < site.exportClicksNeeded {
					return nil
				}
				dest := filepath.Join(sess.DownloadDir(), "Financial_Report.xlsx")
				return os.WriteFile(dest, workbookBytes, 0o600)
			},
		},
	)
	return site
}

// newTestFetcher wires a Fetcher over the scripted session with a fast
// poller and no politeness delay.
func newTestFetcher(t *testing.T, session browser.Session, runID, downloadsDir string, stepWait time.Duration) *robot.Fetcher {
	t.Helper()
	poller := robot.NewPoller(5*time.Millisecond, 40, 2*time.Second, zap.NewNop())
	return robot.NewFetcher(session, poller, sha256.New(), &fakeIDs{}, system.New(), nil, robot.FetchConfig{
		RunID:        runID,
		SearchURL:    searchURL,
		ReportType:   "10-Q",
		DownloadsDir: downloadsDir,
		StepWait:     stepWait,
		Settle:       time.Millisecond,
	}, zap.NewNop())
}

// zipEntries lists an archive's entry names, sorted.
func zipEntries(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := []string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
