package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/finbots-io/edgarbot/internal/robot"
)

const (
	defaultResultLimit = 50
	maxResultLimit     = 500
	defaultEventLimit  = 100
	maxEventLimit      = 1000
)

// getStatus handles GET /v1/status. It returns {"run": {...}} with the live
// report, or 503 when no run is attached.
func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	if s.report == nil {
		writeError(w, http.StatusServiceUnavailable, "no run attached")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": s.report.Report()})
}

// listResults handles GET /v1/results?status=&limit=&offset=. It returns
// {"results": [...]} windows over the run's per-ticker outcomes, 400 for
// invalid filters, or 503 when no run is attached.
func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	if s.report == nil {
		writeError(w, http.StatusServiceUnavailable, "no run attached")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultResultLimit, maxResultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	statusParam := strings.TrimSpace(r.URL.Query().Get("status"))
	var status *robot.FetchStatus
	if statusParam != "" {
		statusVal, parseErr := parseFetchStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &statusVal
	}

	results := s.report.Report().Results
	filtered := make([]robot.FetchResult, 0, len(results))
	for _, result := range results {
		if status != nil && result.Status != *status {
			continue
		}
		filtered = append(filtered, result)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": window(filtered, limit, offset),
	})
}

// listEvents handles GET /v1/events?limit=. It returns {"events": [...]}
// with the newest progress events in chronological order, or 503 when no
// event buffer is attached.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "no event buffer attached")
		return
	}
	limit := defaultEventLimit
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if val > maxEventLimit {
			val = maxEventLimit
		}
		limit = val
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.events.Events(limit),
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseFetchStatus(input string) (robot.FetchStatus, error) {
	switch strings.ToLower(input) {
	case "succeeded", "success":
		return robot.FetchSucceeded, nil
	case "failed", "failure", "error":
		return robot.FetchFailed, nil
	default:
		return "", errors.New("invalid status")
	}
}

func window(results []robot.FetchResult, limit, offset int) []robot.FetchResult {
	if offset >= len(results) {
		return []robot.FetchResult{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
