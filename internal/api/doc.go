// Package api hosts the HTTP server for operator access to a running robot.
// Notable routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the live run report.
//   - GET /v1/results for per-ticker outcomes, filterable by status.
//   - GET /v1/events for the most recent progress events.
package api
