package sinks

import (
	"context"
	"sync"

	"github.com/finbots-io/edgarbot/internal/progress"
)

const defaultRecentCapacity = 512

// RecentSink keeps the newest events in a fixed-size ring so the status API
// can show what the robot is doing without touching any store.
type RecentSink struct {
	mu     sync.RWMutex
	ring   []progress.Event
	next   int
	filled bool
}

// NewRecentSink creates a ring holding up to capacity events.
func NewRecentSink(capacity int) *RecentSink {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &RecentSink{ring: make([]progress.Event, capacity)}
}

// Consume appends the batch, overwriting the oldest entries once full.
func (s *RecentSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.ring[s.next] = evt
		s.next++
		if s.next == len(s.ring) {
			s.next = 0
			s.filled = true
		}
	}
	return nil
}

// Events returns up to limit of the newest events in chronological order.
// limit <= 0 means everything retained.
func (s *RecentSink) Events(limit int) []progress.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ordered []progress.Event
	if s.filled {
		ordered = make([]progress.Event, 0, len(s.ring))
		ordered = append(ordered, s.ring[s.next:]...)
		ordered = append(ordered, s.ring[:s.next]...)
	} else {
		ordered = append(ordered, s.ring[:s.next]...)
	}
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}

// Close is a no-op; the ring lives as long as the process.
func (s *RecentSink) Close(context.Context) error { return nil }
