package robot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/browser"
	"github.com/finbots-io/edgarbot/internal/progress"
)

// RunConfig carries the run-level knobs the Runner needs beyond its
// collaborators.
type RunConfig struct {
	// Bot names the robot in reports and audit rows.
	Bot string
	// Bucket is the object-store bucket the run ships into, recorded on
	// the report so readers know where to look.
	Bucket string
	// ReportType is the filing type requested for every ticker.
	ReportType string
	// Policy decides how the batch reacts to a failed ticker.
	Policy FailurePolicy
	// Delay is the pause between session teardown and finalize, giving the
	// driver time to flush its log.
	Delay time.Duration
}

// Runner owns one robot run end to end: preflight, worklist, the fetch loop,
// teardown, finalize, and the report. Any stage error escalates: it is
// logged with its stage tag, the session is torn down, and the error is
// returned so the process can exit non-zero.
type Runner struct {
	worklist  WorklistSource
	fetcher   *Fetcher
	finalizer *Finalizer
	preflight *Preflight
	session   browser.Session
	results   ResultStore
	notifier  Notifier
	audit     AuditLog
	emitter   progress.Emitter
	clock     Clock
	pauser    pauser
	logger    *zap.Logger
	cfg       RunConfig

	mu     sync.Mutex
	report RunReport
}

// New builds a Runner. preflight, results, notifier, audit, and emitter may
// be nil; those capabilities are simply skipped.
func New(
	worklist WorklistSource,
	fetcher *Fetcher,
	finalizer *Finalizer,
	preflight *Preflight,
	session browser.Session,
	results ResultStore,
	notifier Notifier,
	audit AuditLog,
	emitter progress.Emitter,
	clock Clock,
	cfg RunConfig,
	logger *zap.Logger,
) *Runner {
	if cfg.ReportType == "" {
		cfg.ReportType = "10-Q"
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyAnyFailed
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		worklist:  worklist,
		fetcher:   fetcher,
		finalizer: finalizer,
		preflight: preflight,
		session:   session,
		results:   results,
		notifier:  notifier,
		audit:     audit,
		emitter:   emitter,
		clock:     clock,
		pauser:    &timerPauser{},
		logger:    logger,
		cfg:       cfg,
	}
}

// PrepareRun mints a run id and creates the directory layout one run owns.
// driverLogName is the file the browser driver writes under the work dir;
// empty means chrome.log.
func PrepareRun(ids IDGenerator, workDir, downloadsDir, logsDir, driverLogName string) (RunContext, error) {
	runID, err := ids.NewID()
	if err != nil {
		return RunContext{}, fmt.Errorf("mint run id: %w", err)
	}
	if driverLogName == "" {
		driverLogName = "chrome.log"
	}
	rc := RunContext{
		RunID:         runID,
		WorkDir:       workDir,
		DownloadsDir:  downloadsDir,
		LogsDir:       logsDir,
		DriverLogPath: filepath.Join(workDir, driverLogName),
	}
	for _, dir := range []string{rc.WorkDir, rc.DownloadsDir, rc.LogsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return RunContext{}, fmt.Errorf("create run dir %s: %w", dir, err)
		}
	}
	return rc, nil
}

// Run executes the whole batch. Fetch failures become per-ticker results and
// feed the failure policy; everything else (preflight, worklist, context
// cancellation, finalize, panics) escalates immediately.
func (r *Runner) Run(ctx context.Context, rc RunContext) (err error) {
	stage := StagePreflight
	defer func() {
		if p := recover(); p != nil {
			err = r.escalate(stage, fmt.Errorf("panic: %v", p))
		}
	}()

	r.beginReport(rc.RunID)
	r.auditRow("execution", fmt.Sprintf("run %s started", rc.RunID))
	r.emit(rc.RunID, progress.StageRun, progress.ClassStart, "")

	if r.preflight != nil {
		if perr := r.preflight.Check(ctx); perr != nil {
			return r.escalate(StagePreflight, perr)
		}
	}

	stage = StageWorklist
	tickers, werr := r.worklist.Read(ctx)
	if werr != nil {
		return r.escalate(StageWorklist, werr)
	}
	r.auditRow("worklist", fmt.Sprintf("%d tickers loaded", len(tickers)))
	r.logger.Info("worklist loaded", zap.Int("tickers", len(tickers)))

	stage = StageFetch
	failed := r.fetchAll(ctx, rc, tickers)
	if cerr := ctx.Err(); cerr != nil {
		return r.escalate(StageFetch, cerr)
	}

	stage = StageFinalize
	// The driver log is complete only once the browser has exited, so the
	// session comes down before anything is shipped.
	r.teardown()
	if r.pauser != nil {
		r.pauser.Pause(ctx, r.cfg.Delay)
	}

	runLogPath := ""
	if r.audit != nil {
		r.audit.Completion()
		runLogPath = r.audit.Path()
		if cerr := r.audit.Close(); cerr != nil {
			r.logger.Warn("run log close failed", zap.Error(cerr))
		}
	}

	if ferr := r.finalizer.Finalize(ctx, rc, runLogPath); ferr != nil {
		return r.escalate(StageFinalize, ferr)
	}

	r.finishReport()
	r.notify(ctx)

	if len(failed) > 0 && r.cfg.Policy != PolicyBestEffort {
		berr := &BatchError{Failed: failed}
		r.logger.Error("run failed", zap.String("stage", string(StageFetch)), zap.Error(berr))
		r.emit(rc.RunID, progress.StageRun, progress.ClassFailure, berr.Error())
		return berr
	}

	r.emit(rc.RunID, progress.StageRun, progress.ClassSuccess, "")
	counters := r.Report().Counters
	r.logger.Info("run complete",
		zap.String("run_id", rc.RunID),
		zap.Int("attempted", counters.Attempted),
		zap.Int("succeeded", counters.Succeeded),
		zap.Int("failed", counters.Failed))
	return nil
}

// fetchAll walks the worklist sequentially, one browser session shared by
// all tickers, and returns the tickers that failed. Under PolicyAbort the
// loop stops at the first failure.
func (r *Runner) fetchAll(ctx context.Context, rc RunContext, tickers []string) []string {
	var failed []string
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return failed
		}
		fetchesStarted.Inc()
		result := r.fetcher.Fetch(ctx, FetchJob{Ticker: ticker, ReportType: r.cfg.ReportType})
		fetchDuration.Observe(float64(result.DurationMs) / 1000)
		r.appendResult(result)
		r.record(ctx, rc.RunID, result)
		if result.Status == FetchSucceeded {
			fetchesSucceeded.Inc()
			r.auditRow("fetch", fmt.Sprintf("%s workbook filed", ticker))
			continue
		}
		fetchesFailed.Inc()
		r.auditRow("fetch", fmt.Sprintf("%s failed: %s", ticker, result.Error))
		failed = append(failed, ticker)
		if r.cfg.Policy == PolicyAbort {
			r.logger.Warn("stopping batch after first failure",
				zap.String("ticker", ticker), zap.String("policy", string(r.cfg.Policy)))
			return failed
		}
	}
	return failed
}

// escalate is the single funnel for stage errors: log with the stage tag,
// leave a trail row, tear the session down, and hand back a wrapped error
// for the process to exit on.
func (r *Runner) escalate(stage Stage, cause error) error {
	r.logger.Error("run failed", zap.String("stage", string(stage)), zap.Error(cause))
	r.auditRow("execution", fmt.Sprintf("%s: %v", stage, cause))
	r.emit(r.Report().RunID, progress.StageRun, progress.ClassFailure, cause.Error())
	r.teardown()
	r.finishReport()
	return fmt.Errorf("%s: %w", stage, cause)
}

// teardown closes the browser session. Its errors are logged and dropped;
// the run's own verdict is the one worth surfacing.
func (r *Runner) teardown() {
	if r.session == nil {
		return
	}
	if err := r.session.Close(); err != nil {
		r.logger.Warn("session teardown failed", zap.Error(err))
	}
}

func (r *Runner) record(ctx context.Context, runID string, result FetchResult) {
	if r.results == nil {
		return
	}
	if err := r.results.RecordFetch(ctx, runID, result); err != nil {
		r.logger.Warn("result store write failed",
			zap.String("ticker", result.Ticker), zap.Error(err))
	}
}

func (r *Runner) notify(ctx context.Context) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, r.Report()); err != nil {
		r.logger.Warn("run report publish failed", zap.Error(err))
	}
}

func (r *Runner) auditRow(tag, message string) {
	if r.audit == nil {
		return
	}
	r.audit.Log(tag, message)
}

func (r *Runner) emit(runID string, stage progress.Stage, class progress.Class, detail string) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(progress.Event{
		RunID:  runID,
		Stage:  stage,
		Class:  class,
		Detail: detail,
		At:     r.clock.Now(),
	})
}

func (r *Runner) beginReport(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = RunReport{
		RunID:     runID,
		Bot:       r.cfg.Bot,
		Bucket:    r.cfg.Bucket,
		StartedAt: r.clock.Now(),
		Results:   []FetchResult{},
	}
}

func (r *Runner) appendResult(result FetchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Results = append(r.report.Results, result)
	r.report.Counters.Attempted++
	if result.Status == FetchSucceeded {
		r.report.Counters.Succeeded++
	} else {
		r.report.Counters.Failed++
	}
}

func (r *Runner) finishReport() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.report.FinishedAt != nil {
		return
	}
	now := r.clock.Now()
	r.report.FinishedAt = &now
}

// Report returns a point-in-time copy of the run report, safe for concurrent
// readers such as the status endpoint.
func (r *Runner) Report() RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.report
	snapshot.Results = append([]FetchResult(nil), r.report.Results...)
	if r.report.FinishedAt != nil {
		finished := *r.report.FinishedAt
		snapshot.FinishedAt = &finished
	}
	return snapshot
}
