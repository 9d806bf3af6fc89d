package detect

import "sync"

// Stats holds process-lifetime detection counters. Reset only on explicit
// request.
type Stats struct {
	mu        sync.Mutex
	total     int
	byMethod  map[Method]int
	byCompany map[string]int
}

// StatsSnapshot is an immutable copy of the counters.
type StatsSnapshot struct {
	TotalDetections int            `json:"total_detections"`
	ByMethod        map[string]int `json:"by_method"`
	ByCompany       map[string]int `json:"by_company"`
}

// NewStats creates an empty counter set.
func NewStats() *Stats {
	return &Stats{
		byMethod:  make(map[Method]int),
		byCompany: make(map[string]int),
	}
}

// Record counts one attribution.
func (s *Stats) Record(attr *Attribution) {
	if attr == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.byMethod[attr.Method]++
	s.byCompany[attr.Company]++
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		TotalDetections: s.total,
		ByMethod:        make(map[string]int, len(s.byMethod)),
		ByCompany:       make(map[string]int, len(s.byCompany)),
	}
	for m, n := range s.byMethod {
		snap.ByMethod[string(m)] = n
	}
	for c, n := range s.byCompany {
		snap.ByCompany[c] = n
	}
	return snap
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.byMethod = make(map[Method]int)
	s.byCompany = make(map[string]int)
}
