package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/finbots-io/edgarbot/internal/robot"
)

// ResultStore keeps per-ticker fetch outcomes in memory, grouped by run.
// Development runs and tests use it to assert on exactly what was recorded.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string][]robot.FetchResult
	closed  bool
}

// NewResultStore constructs an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string][]robot.FetchResult)}
}

// RecordFetch appends one ticker's outcome to the run's history.
func (s *ResultStore) RecordFetch(_ context.Context, runID string, result robot.FetchResult) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if result.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("result store is closed")
	}
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// ByRun returns a copy of the results recorded for one run, in record order.
func (s *ResultStore) ByRun(runID string) []robot.FetchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.results[runID]
	out := make([]robot.FetchResult, len(results))
	copy(out, results)
	return out
}

// Runs counts the distinct runs that recorded at least one result.
func (s *ResultStore) Runs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Close marks the store closed; later writes fail.
func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
