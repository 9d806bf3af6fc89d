package detect

import (
	"context"
	"log"
	"time"
)

// Detector orchestrates every signal producer and arbitrates their
// candidates. Detect is a total function: for any input it returns an
// attribution or nil, never an error. A fault in one signal source can
// never abort the caller's request handling.
type Detector struct {
	network    *NetworkAttributor
	behavior   *BehaviorTracker
	heuristics *Heuristics
	stats      *Stats

	// Enhanced enables the broader heuristic sweeps (suspicious UA,
	// AI referrers, header shape) on top of the core producers.
	Enhanced bool

	// GuidedPath is the externally supplied path-classification
	// predicate. Consumed, not produced, here; nil means no path is
	// guided.
	GuidedPath func(path string) bool

	// OnDetection, when set, observes every successful attribution
	// (metrics export).
	OnDetection func(*Attribution)
}

// NewDetector wires a detector from its components.
func NewDetector(network *NetworkAttributor, behavior *BehaviorTracker, heuristics *Heuristics) *Detector {
	return &Detector{
		network:    network,
		behavior:   behavior,
		heuristics: heuristics,
		stats:      NewStats(),
	}
}

// Detect classifies one request's signals. Producers run in a fixed
// order (signature, network when an IP is present, behavior, then the
// enhanced heuristics) and the arbiter picks by confidence alone, with
// producer order breaking ties.
func (d *Detector) Detect(ctx context.Context, sig Signals) (attr *Attribution) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("detect: recovered from panic: %v", r)
			attr = nil
		}
	}()

	var candidates []Attribution

	if ua := MatchUserAgent(sig.UserAgent); ua != nil {
		candidates = append(candidates, *ua)
	}

	if sig.ClientIP != "" && d.network != nil {
		if net := d.network.Attribute(ctx, sig.ClientIP, sig.Hostname); net != nil {
			candidates = append(candidates, *net)
		}
	}

	if d.behavior != nil && sig.ClientIP != "" {
		key := BehaviorKey(sig.ClientIP, sig.UserAgent)
		if beh := d.behavior.Observe(key, sig.Path, time.Now()); beh != nil {
			candidates = append(candidates, *beh)
		}
	}

	if d.Enhanced && d.heuristics != nil {
		if sus := d.heuristics.SuspiciousUserAgent(sig.UserAgent); sus != nil {
			candidates = append(candidates, *sus)
		}
		if ref := d.heuristics.SuspiciousReferrer(sig.Referrer); ref != nil {
			candidates = append(candidates, *ref)
		}
		if hdr := d.heuristics.HeaderShape(sig.Headers); hdr != nil {
			candidates = append(candidates, *hdr)
		}
	}

	attr = Arbitrate(candidates)
	if attr != nil {
		d.stats.Record(attr)
		if d.OnDetection != nil {
			d.OnDetection(attr)
		}
	}
	return attr
}

// Stats returns a snapshot of the detection counters.
func (d *Detector) Stats() StatsSnapshot {
	return d.stats.Snapshot()
}

// ResetStats zeroes the detection counters.
func (d *Detector) ResetStats() {
	d.stats.Reset()
}

// IsGuidedPath applies the consumed path predicate.
func (d *Detector) IsGuidedPath(path string) bool {
	return d.GuidedPath != nil && d.GuidedPath(path)
}
