package memory

import (
	"context"
	"testing"

	"github.com/finbots-io/edgarbot/internal/robot"
)

func TestResultStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewResultStore()
	ctx := context.Background()

	if err := store.RecordFetch(ctx, "", robot.FetchResult{Ticker: "AAPL"}); err == nil {
		t.Fatal("expected error for missing run id")
	}
	if err := store.RecordFetch(ctx, "run-1", robot.FetchResult{}); err == nil {
		t.Fatal("expected error for missing ticker")
	}

	ok := robot.FetchResult{Ticker: "AAPL", Status: robot.FetchSucceeded}
	bad := robot.FetchResult{Ticker: "MSFT", Status: robot.FetchFailed, Error: "no workbook"}
	if err := store.RecordFetch(ctx, "run-1", ok); err != nil {
		t.Fatalf("RecordFetch() error = %v", err)
	}
	if err := store.RecordFetch(ctx, "run-1", bad); err != nil {
		t.Fatalf("RecordFetch() error = %v", err)
	}

	results := store.ByRun("run-1")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Ticker != "AAPL" || results[1].Ticker != "MSFT" {
		t.Fatalf("expected record order preserved, got %+v", results)
	}
	results[0].Ticker = "modified"
	if store.ByRun("run-1")[0].Ticker != "AAPL" {
		t.Fatal("expected ByRun to return a copy")
	}
	if store.Runs() != 1 {
		t.Fatalf("Runs() = %d, want 1", store.Runs())
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.RecordFetch(ctx, "run-1", ok); err == nil {
		t.Fatal("expected write after close to fail")
	}
}
