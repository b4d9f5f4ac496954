// Package memory contains an in-memory notifier for tests and dev runs.
package memory

import (
	"context"
	"sync"

	"github.com/finbots-io/edgarbot/internal/robot"
)

// Notifier stores published run reports for inspection.
type Notifier struct {
	mu      sync.RWMutex
	reports []robot.RunReport
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Publish records the report.
func (n *Notifier) Publish(_ context.Context, report robot.RunReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return nil
}

// Reports returns the recorded publishes.
func (n *Notifier) Reports() []robot.RunReport {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]robot.RunReport, len(n.reports))
	copy(out, n.reports)
	return out
}

// Close is a no-op.
func (n *Notifier) Close() error { return nil }
