package runloop

import (
	"sync"
	"time"
)

// Stats tracks process-wide cycle counters. It lives only in memory; a
// restart begins a fresh cycle count, and store durability guarantees no
// duplicate leads result.
type Stats struct {
	mu                  sync.Mutex
	cycle               int64
	lastStart           time.Time
	lastEnd             time.Time
	consecutiveFailures int
	totalItems          int64
	totalLeads          int64
}

// begin marks a new cycle and returns its number.
func (s *Stats) begin(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycle++
	s.lastStart = now
	return s.cycle
}

// succeed records a completed cycle.
func (s *Stats) succeed(now time.Time, items, leads int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastEnd = now
	s.consecutiveFailures = 0
	s.totalItems += int64(items)
	s.totalLeads += int64(leads)
}

// fail records a fatal cycle error and returns the failure streak length.
func (s *Stats) fail(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastEnd = now
	s.consecutiveFailures++
	return s.consecutiveFailures
}

// snapshot returns a copy of the counters.
func (s *Stats) snapshot() (cycle int64, lastStart, lastEnd time.Time, failures int, items, leads int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cycle, s.lastStart, s.lastEnd, s.consecutiveFailures, s.totalItems, s.totalLeads
}
