// Package robot defines core types shared across the retrieval pipeline.
package robot

import (
	"fmt"
	"time"
)

// FetchStatus represents the outcome of one worklist entry.
type FetchStatus string

// Fetch status values recorded per ticker.
const (
	FetchSucceeded FetchStatus = "succeeded"
	FetchFailed    FetchStatus = "failed"
)

// FetchJob identifies one filing fetch.
type FetchJob struct {
	Ticker     string `json:"ticker"`
	ReportType string `json:"report_type"`
}

// FetchResult records what one worklist entry produced.
type FetchResult struct {
	Ticker         string      `json:"ticker"`
	ReportType     string      `json:"report_type"`
	Status         FetchStatus `json:"status"`
	ArtifactPath   string      `json:"artifact_path,omitempty"`
	ArtifactSHA256 string      `json:"artifact_sha256,omitempty"`
	Error          string      `json:"error,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	DurationMs     int64       `json:"duration_ms"`
	PollAttempts   int         `json:"poll_attempts"`
}

// RunCounters tracks per-run outcome totals.
type RunCounters struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RunReport is the run snapshot served over /status and published when the
// run completes.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Bot        string        `json:"bot"`
	Bucket     string        `json:"bucket,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Results    []FetchResult `json:"results"`
	Counters   RunCounters   `json:"counters"`
}

// RunContext is the filesystem layout one run owns: where downloads land,
// where the audit log lives, and where bundles are staged.
type RunContext struct {
	RunID         string
	WorkDir       string
	DownloadsDir  string
	LogsDir       string
	DriverLogPath string
}

// FailurePolicy decides how ticker failures affect the run verdict.
type FailurePolicy string

// Supported failure policies.
const (
	// PolicyAbort stops the batch at the first failed ticker.
	PolicyAbort FailurePolicy = "abort"
	// PolicyAnyFailed processes every ticker and fails the run if any failed.
	PolicyAnyFailed FailurePolicy = "any_failed"
	// PolicyBestEffort processes every ticker and never fails the run on
	// ticker errors.
	PolicyBestEffort FailurePolicy = "best_effort"
)

// ParseFailurePolicy validates a configured policy name.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(name) {
	case PolicyAbort, PolicyAnyFailed, PolicyBestEffort:
		return FailurePolicy(name), nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", name)
	}
}
