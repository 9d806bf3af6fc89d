package detect

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BehaviorTracker keeps a bounded sliding-window request history per
// (client IP, User-Agent) key and flags rate and URL-breadth anomalies.
// Note: in a multi-instance deployment, back this with Redis or a
// database for shared state.
type BehaviorTracker struct {
	mu      sync.Mutex
	records map[string]*behaviorRecord

	rapidWindow     time.Duration
	rapidThreshold  int
	spreadThreshold int
	retention       time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

type behaviorRecord struct {
	hits []behaviorHit
	urls map[string]struct{}
}

type behaviorHit struct {
	ts  time.Time
	url string
}

// BehaviorConfig holds tunables; zero values take the defaults
// (10 requests / 60s, 20 distinct URLs, 1h retention).
type BehaviorConfig struct {
	RapidWindow     time.Duration
	RapidThreshold  int
	SpreadThreshold int
	Retention       time.Duration
}

// NewBehaviorTracker creates a tracker. Call Start for the hourly sweep
// and Close during shutdown.
func NewBehaviorTracker(cfg BehaviorConfig) *BehaviorTracker {
	if cfg.RapidWindow <= 0 {
		cfg.RapidWindow = 60 * time.Second
	}
	if cfg.RapidThreshold <= 0 {
		cfg.RapidThreshold = 10
	}
	if cfg.SpreadThreshold <= 0 {
		cfg.SpreadThreshold = 20
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	return &BehaviorTracker{
		records:         make(map[string]*behaviorRecord),
		rapidWindow:     cfg.RapidWindow,
		rapidThreshold:  cfg.RapidThreshold,
		spreadThreshold: cfg.SpreadThreshold,
		retention:       cfg.Retention,
		done:            make(chan struct{}),
	}
}

// BehaviorKey builds the composite tracking key.
func BehaviorKey(ip, userAgent string) string {
	return ip + "|" + userAgent
}

// Observe records one request for key and reports a behavioral
// attribution when the key crosses a threshold: more than rapidThreshold
// requests inside rapidWindow, or more than spreadThreshold distinct URLs
// over the record's lifetime.
func (b *BehaviorTracker) Observe(key, url string, now time.Time) *Attribution {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[key]
	if !ok {
		rec = &behaviorRecord{urls: make(map[string]struct{})}
		b.records[key] = rec
	}

	rec.hits = append(rec.hits, behaviorHit{ts: now, url: url})
	rec.urls[url] = struct{}{}
	rec.prune(now.Add(-b.retention))

	recent := 0
	for _, hit := range rec.hits {
		if now.Sub(hit.ts) < b.rapidWindow {
			recent++
		}
	}

	if recent > b.rapidThreshold {
		return &Attribution{
			Company:     "unknown_bot",
			CompanyName: "Unknown Bot",
			Method:      MethodRapidRequests,
			Confidence:  0.7,
			Details:     fmt.Sprintf("%d requests in %s", recent, b.rapidWindow),
		}
	}
	if len(rec.urls) > b.spreadThreshold {
		return &Attribution{
			Company:     "unknown_bot",
			CompanyName: "Unknown Bot",
			Method:      MethodSystematicCrawling,
			Confidence:  0.6,
			Details:     fmt.Sprintf("%d distinct URLs visited", len(rec.urls)),
		}
	}
	return nil
}

// prune drops hits older than cutoff. The distinct-URL set is cumulative
// for the record's lifetime and is only released when the whole record
// ages out in the sweep.
func (r *behaviorRecord) prune(cutoff time.Time) {
	kept := r.hits[:0]
	for _, hit := range r.hits {
		if hit.ts.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	r.hits = kept
}

// Start launches the hourly eviction sweep.
func (b *BehaviorTracker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.Sweep(time.Now())
			case <-ctx.Done():
				return
			case <-b.done:
				return
			}
		}
	}()
}

// Close stops the background sweep.
func (b *BehaviorTracker) Close() {
	b.stopOnce.Do(func() { close(b.done) })
}

// Sweep evicts entries older than the retention horizon and deletes
// records left empty, bounding memory under high-cardinality traffic.
func (b *BehaviorTracker) Sweep(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := now.Add(-b.retention)
	for key, rec := range b.records {
		rec.prune(cutoff)
		if len(rec.hits) == 0 {
			delete(b.records, key)
		}
	}
}

// Size reports the number of tracked keys.
func (b *BehaviorTracker) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
