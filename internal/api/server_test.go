package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/progress"
	"github.com/finbots-io/edgarbot/internal/robot"
)

// --- fakes ---

type fakeReportSource struct {
	report robot.RunReport
}

func (f *fakeReportSource) Report() robot.RunReport { return f.report }

type fakeEventSource struct {
	events []progress.Event
	limit  int
}

func (f *fakeEventSource) Events(limit int) []progress.Event {
	f.limit = limit
	if limit > 0 && len(f.events) > limit {
		return f.events[len(f.events)-limit:]
	}
	return f.events
}

func sampleReport() robot.RunReport {
	finished := time.Unix(210, 0).UTC()
	return robot.RunReport{
		RunID:     "run-1",
		Bot:       "edgar-investigator",
		Bucket:    "edgar-artifacts",
		StartedAt: time.Unix(100, 0).UTC(),
		FinishedAt: &finished,
		Results: []robot.FetchResult{
			{Ticker: "AAPL", ReportType: "10-Q", Status: robot.FetchSucceeded},
			{Ticker: "MSFT", ReportType: "10-Q", Status: robot.FetchFailed, Error: "no workbook"},
			{Ticker: "IBM", ReportType: "10-Q", Status: robot.FetchSucceeded},
		},
		Counters: robot.RunCounters{Attempted: 3, Succeeded: 2, Failed: 1},
	}
}

func newTestServer() *Server {
	return NewServer(&fakeReportSource{report: sampleReport()}, &fakeEventSource{}, Config{}, zap.NewNop())
}

// --- tests ---

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz_NoRun(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, Config{}, zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Status_ReturnsReport(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Run robot.RunReport `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "run-1", payload.Run.RunID)
	require.Equal(t, 3, payload.Run.Counters.Attempted)
	require.Len(t, payload.Run.Results, 3)
}

func TestServer_Results_FilterByStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/v1/results?status=failed", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Results []robot.FetchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Results, 1)
	require.Equal(t, "MSFT", payload.Results[0].Ticker)
}

func TestServer_Results_LimitOffset(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/v1/results?limit=1&offset=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Results []robot.FetchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Results, 1)
	require.Equal(t, "MSFT", payload.Results[0].Ticker)
}

func TestServer_Results_InvalidFilters(t *testing.T) {
	t.Parallel()

	server := newTestServer()
	for _, target := range []string{
		"/v1/results?limit=0",
		"/v1/results?limit=abc",
		"/v1/results?offset=-1",
		"/v1/results?status=sideways",
	} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
	}
}

func TestServer_Events_ReturnsNewest(t *testing.T) {
	t.Parallel()

	events := &fakeEventSource{events: []progress.Event{
		{RunID: "run-1", Stage: progress.StageRun, Class: progress.ClassStart, At: time.Unix(1, 0)},
		{RunID: "run-1", Ticker: "AAPL", Stage: progress.StageNavigate, Class: progress.ClassStart, At: time.Unix(2, 0)},
	}}
	server := NewServer(&fakeReportSource{}, events, Config{}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, events.limit)

	var payload struct {
		Events []progress.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Events, 1)
	require.Equal(t, "AAPL", payload.Events[0].Ticker)
}

func TestServer_Events_NoBuffer(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeReportSource{}, nil, Config{}, zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_APIKey_GatesRoutes(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeReportSource{report: sampleReport()}, nil, Config{APIKey: "sekrit"}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("X-API-Key", "sekrit")
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Metrics_Exposed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
