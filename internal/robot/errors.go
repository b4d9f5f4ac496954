package robot

import (
	"fmt"
	"strings"
	"time"
)

// Stage names the pipeline phase an error escaped from. The runner tags
// escalated errors with the stage so operators can read the failure point
// straight from the log.
type Stage string

// Pipeline stages in execution order.
const (
	StagePreflight Stage = "preflight"
	StageWorklist  Stage = "worklist"
	StageFetch     Stage = "fetch"
	StageFinalize  Stage = "finalize"
)

// StepError wraps a failure from one named browser step, keeping the step
// label so the log shows where the navigation chain broke.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// DownloadTimeoutError reports that the poller gave up waiting for a
// workbook to land in the scratch directory.
type DownloadTimeoutError struct {
	Dir      string
	Waited   time.Duration
	Attempts int
}

func (e *DownloadTimeoutError) Error() string {
	return fmt.Sprintf("no workbook arrived in %s after %s (%d polls)", e.Dir, e.Waited, e.Attempts)
}

// UploadError reports a failed artifact upload during finalization.
type UploadError struct {
	Object string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Object, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// BatchError reports which tickers failed when the configured policy turns
// partial failure into a run failure.
type BatchError struct {
	Failed []string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d tickers failed: %s", len(e.Failed), strings.Join(e.Failed, ", "))
}
