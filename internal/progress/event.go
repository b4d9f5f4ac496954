// Package progress defines the step events emitted by the retrieval pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage names the pipeline step an event describes.
type Stage string

// Supported progress stages.
const (
	StageRun      Stage = "run"
	StageNavigate Stage = "navigate"
	StageSearch   Stage = "search"
	StageDownload Stage = "download"
	StageOrganize Stage = "organize"
	StageFinalize Stage = "finalize"
)

// Class is the coarse outcome grouping of an event.
type Class string

// Supported outcome classes.
const (
	ClassStart   Class = "start"
	ClassSuccess Class = "success"
	ClassFailure Class = "failure"
)

// Event captures a single pipeline milestone.
type Event struct {
	// RunID identifies the batch run the event belongs to.
	RunID string `json:"run_id"`
	// Ticker optionally scopes the event to one worklist entry.
	Ticker string `json:"ticker,omitempty"`
	// Stage denotes which pipeline step occurred.
	Stage Stage `json:"stage"`
	// Class groups the outcome (start, success, failure).
	Class Class `json:"class"`
	// Detail lets emitters attach low-volume context (e.g. error text).
	Detail string `json:"detail,omitempty"`
	// At is the UTC timestamp recorded by the emitter.
	At time.Time `json:"at"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.At.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRun, StageFinalize:
	case StageNavigate, StageSearch, StageDownload, StageOrganize:
		if e.Ticker == "" {
			return fmt.Errorf("%s events require a ticker", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	switch e.Class {
	case ClassStart, ClassSuccess, ClassFailure:
	default:
		return fmt.Errorf("unknown class %q", e.Class)
	}
	return nil
}
