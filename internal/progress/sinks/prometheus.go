package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/finbots-io/edgarbot/internal/progress"
)

// PrometheusSink exports pipeline progress metrics via Prometheus. It owns the
// per-stage step counters and the in-flight ticker gauge.
type PrometheusSink struct {
	stepEvents      *prometheus.CounterVec
	tickersInFlight prometheus.Gauge

	tracker *tickerTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		stepEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robot_step_events_total",
			Help: "Pipeline step events partitioned by stage and class.",
		}, []string{"stage", "class"}),
		tickersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robot_tickers_in_flight",
			Help: "Worklist entries currently being fetched.",
		}),
		tracker: newTickerTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.stepEvents,
		s.tickersInFlight,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	s.stepEvents.WithLabelValues(string(evt.Stage), string(evt.Class)).Inc()
	if evt.Ticker == "" {
		return
	}
	key := evt.RunID + "/" + evt.Ticker
	switch {
	case evt.Stage == progress.StageNavigate && evt.Class == progress.ClassStart:
		if s.tracker.start(key) {
			s.tickersInFlight.Inc()
		}
	case evt.Class == progress.ClassFailure,
		evt.Stage == progress.StageOrganize && evt.Class == progress.ClassSuccess:
		if s.tracker.complete(key) {
			s.tickersInFlight.Dec()
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type tickerTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newTickerTracker() *tickerTracker {
	return &tickerTracker{running: make(map[string]struct{})}
}

func (t *tickerTracker) start(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[key]; ok {
		return false
	}
	t.running[key] = struct{}{}
	return true
}

func (t *tickerTracker) complete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[key]; !ok {
		return false
	}
	delete(t.running, key)
	return true
}
