package robot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// fetchesStarted counts tickers accepted for processing.
var fetchesStarted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "robot_fetches_started_total",
	Help: "Number of ticker fetches started.",
})

// fetchesSucceeded counts tickers whose workbook was filed successfully.
var fetchesSucceeded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "robot_fetches_succeeded_total",
	Help: "Number of ticker fetches that produced a filed workbook.",
})

// fetchesFailed counts tickers that ended in an error.
var fetchesFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "robot_fetches_failed_total",
	Help: "Number of ticker fetches that failed.",
})

// fetchDuration tracks wall time per ticker fetch.
var fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "robot_fetch_duration_seconds",
	Help:    "Wall time spent fetching one ticker.",
	Buckets: prometheus.ExponentialBuckets(1, 2, 10),
})

// pollTicks counts download poll attempts across all fetches.
var pollTicks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "robot_download_polls_total",
	Help: "Number of download directory polls.",
})

// uploadsCompleted counts artifacts uploaded during finalization.
var uploadsCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "robot_uploads_completed_total",
	Help: "Number of artifacts uploaded to the object store.",
})

// uploadsFailed counts artifact uploads that failed after retries.
var uploadsFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "robot_uploads_failed_total",
	Help: "Number of artifact uploads that failed.",
})
