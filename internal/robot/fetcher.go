package robot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/browser"
	"github.com/finbots-io/edgarbot/internal/progress"
)

// excelLinkText is the anchor label EDGAR puts on the workbook export.
const excelLinkText = "View Excel Document"

// FetchConfig controls how the fetch chain drives the filing search.
type FetchConfig struct {
	RunID        string
	SearchURL    string
	ReportType   string
	DownloadsDir string
	StepWait     time.Duration
	Settle       time.Duration
	Delay        time.Duration
}

// Artifact describes one filed workbook.
type Artifact struct {
	Path         string
	SHA256       string
	PollAttempts int
}

// Fetcher drives a browser session from company search to a filed workbook.
// One Fetcher serves one run; fetches are strictly sequential.
type Fetcher struct {
	session  browser.Session
	poller   *Poller
	hasher   Hasher
	ids      IDGenerator
	clock    Clock
	progress progress.Emitter
	pacer    *Pacer
	pauser   pauser
	logger   *zap.Logger
	cfg      FetchConfig
}

// NewFetcher constructs a Fetcher. The step wait and report type default to
// the original robot's values when unset.
func NewFetcher(
	session browser.Session,
	poller *Poller,
	hasher Hasher,
	ids IDGenerator,
	clock Clock,
	emitter progress.Emitter,
	cfg FetchConfig,
	logger *zap.Logger,
) *Fetcher {
	if cfg.StepWait <= 0 {
		cfg.StepWait = 5 * time.Second
	}
	if cfg.ReportType == "" {
		cfg.ReportType = "10-Q"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		session:  session,
		poller:   poller,
		hasher:   hasher,
		ids:      ids,
		clock:    clock,
		progress: emitter,
		pacer:    NewPacer(cfg.Delay),
		pauser:   timerPauser{},
		logger:   logger,
		cfg:      cfg,
	}
}

// Fetch runs the full chain for one ticker: search EDGAR, trigger the Excel
// export, await the download, and file the workbook. The outcome, success or
// failure, is captured in the returned FetchResult.
func (f *Fetcher) Fetch(ctx context.Context, job FetchJob) FetchResult {
	started := f.clock.Now()
	if job.ReportType == "" {
		job.ReportType = f.cfg.ReportType
	}

	artifact, err := f.run(ctx, job)
	result := FetchResult{
		Ticker:       job.Ticker,
		ReportType:   job.ReportType,
		StartedAt:    started,
		DurationMs:   f.clock.Now().Sub(started).Milliseconds(),
		PollAttempts: artifact.PollAttempts,
	}
	if err != nil {
		result.Status = FetchFailed
		result.Error = err.Error()
		f.logger.Error("ticker fetch failed",
			zap.String("ticker", job.Ticker),
			zap.Error(err),
		)
		return result
	}
	result.Status = FetchSucceeded
	result.ArtifactPath = artifact.Path
	result.ArtifactSHA256 = artifact.SHA256
	f.logger.Info("workbook filed",
		zap.String("ticker", job.Ticker),
		zap.String("path", artifact.Path),
		zap.String("sha256", artifact.SHA256),
		zap.Int("polls", artifact.PollAttempts),
	)
	return result
}

func (f *Fetcher) run(ctx context.Context, job FetchJob) (Artifact, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return Artifact{}, &StepError{Step: "pacing", Err: err}
	}

	scratch, cleanup, err := f.newScratchDir()
	if err != nil {
		return Artifact{}, &StepError{Step: "scratch", Err: err}
	}
	defer cleanup()

	if err := f.session.SetDownloadDir(ctx, scratch); err != nil {
		return Artifact{}, &StepError{Step: "download-dir", Err: err}
	}

	f.emit(progress.StageNavigate, progress.ClassStart, job.Ticker, "")
	if err := f.session.Navigate(ctx, f.cfg.SearchURL); err != nil {
		f.emit(progress.StageNavigate, progress.ClassFailure, job.Ticker, err.Error())
		return Artifact{}, &StepError{Step: "navigate", Err: err}
	}
	f.emit(progress.StageNavigate, progress.ClassSuccess, job.Ticker, "")

	f.emit(progress.StageSearch, progress.ClassStart, job.Ticker, "")
	link, err := f.search(ctx, job)
	if err != nil {
		f.emit(progress.StageSearch, progress.ClassFailure, job.Ticker, err.Error())
		return Artifact{}, err
	}
	f.emit(progress.StageSearch, progress.ClassSuccess, job.Ticker, "")

	f.emit(progress.StageDownload, progress.ClassStart, job.Ticker, "")
	nudge := func(nctx context.Context) error { return link.Click(nctx) }
	downloaded, attempts, err := f.poller.Await(ctx, scratch, nudge)
	if err != nil {
		f.emit(progress.StageDownload, progress.ClassFailure, job.Ticker, err.Error())
		return Artifact{PollAttempts: attempts}, &StepError{Step: "download", Err: err}
	}
	f.emit(progress.StageDownload, progress.ClassSuccess, job.Ticker, "")

	f.emit(progress.StageOrganize, progress.ClassStart, job.Ticker, "")
	filed, err := Place(f.cfg.DownloadsDir, job.Ticker, downloaded)
	if err != nil {
		f.emit(progress.StageOrganize, progress.ClassFailure, job.Ticker, err.Error())
		return Artifact{PollAttempts: attempts}, &StepError{Step: "organize", Err: err}
	}
	sum, err := f.hasher.HashFile(filed)
	if err != nil {
		f.emit(progress.StageOrganize, progress.ClassFailure, job.Ticker, err.Error())
		return Artifact{Path: filed, PollAttempts: attempts}, &StepError{Step: "checksum", Err: err}
	}
	f.emit(progress.StageOrganize, progress.ClassSuccess, job.Ticker, "")

	return Artifact{Path: filed, SHA256: sum, PollAttempts: attempts}, nil
}

// search walks the EDGAR company-search flow and returns the export link
// after its first click, so the poller can re-click it on download misses.
func (f *Fetcher) search(ctx context.Context, job FetchJob) (browser.Element, error) {
	if err := f.submitField(ctx, "cik", job.Ticker); err != nil {
		return nil, &StepError{Step: "company-search", Err: err}
	}

	// The filings page replaces the search page; typing into the report-type
	// box before it settles lands keys in the void.
	f.pauser.Pause(ctx, f.cfg.Settle)
	if err := ctx.Err(); err != nil {
		return nil, &StepError{Step: "filing-search", Err: err}
	}
	if err := f.submitField(ctx, "type", job.ReportType); err != nil {
		return nil, &StepError{Step: "filing-search", Err: err}
	}

	if err := f.clickFirst(ctx, "a", "id", "interactiveDataBtn"); err != nil {
		return nil, &StepError{Step: "interactive-data", Err: err}
	}

	link, err := f.findExcelLink(ctx)
	if err != nil {
		return nil, &StepError{Step: "excel-link", Err: err}
	}
	if err := link.Click(ctx); err != nil {
		return nil, &StepError{Step: "excel-link", Err: err}
	}
	return link, nil
}

func (f *Fetcher) submitField(ctx context.Context, id, text string) error {
	fields, err := f.session.FindByTagAndAttr(ctx, "input", "id", id, f.cfg.StepWait)
	if err != nil {
		return err
	}
	field := fields[0]
	if err := field.Clear(ctx); err != nil {
		return err
	}
	return field.SendKeysAndSubmit(ctx, text)
}

func (f *Fetcher) clickFirst(ctx context.Context, tag, attr, match string) error {
	elems, err := f.session.FindByTagAndAttr(ctx, tag, attr, match, f.cfg.StepWait)
	if err != nil {
		return err
	}
	return elems[0].Click(ctx)
}

// findExcelLink keeps only anchors whose exact text matches the export
// label; substring hits never qualify.
func (f *Fetcher) findExcelLink(ctx context.Context) (browser.Element, error) {
	links, err := f.session.FindByTagAndAttr(ctx, "a", "class", "xbrlviewer", f.cfg.StepWait)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		text, err := link.Text(ctx)
		if err != nil {
			f.logger.Debug("link text read failed", zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == excelLinkText {
			return link, nil
		}
	}
	return nil, fmt.Errorf("%w: no anchor titled %q", browser.ErrElementNotFound, excelLinkText)
}

// newScratchDir creates an isolated download target under the downloads dir.
// The dot prefix keeps half-written files out of the data bundle even if
// cleanup is interrupted.
func (f *Fetcher) newScratchDir() (string, func(), error) {
	id, err := f.ids.NewID()
	if err != nil {
		return "", nil, fmt.Errorf("scratch id: %w", err)
	}
	dir := filepath.Join(f.cfg.DownloadsDir, ".scratch-"+id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			f.logger.Warn("scratch cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}
	return dir, cleanup, nil
}

func (f *Fetcher) emit(stage progress.Stage, class progress.Class, ticker, detail string) {
	if f.progress == nil {
		return
	}
	f.progress.Emit(progress.Event{
		RunID:  f.cfg.RunID,
		Ticker: ticker,
		Stage:  stage,
		Class:  class,
		Detail: detail,
		At:     f.clock.Now(),
	})
}
