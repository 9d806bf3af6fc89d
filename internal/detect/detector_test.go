package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	// Lookup backend that always fails; network attribution degrades to
	// pure CIDR matching.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	provider := NewIPInfoProvider(IPInfoConfig{LookupURL: srv.URL + "/%s", RatePerSecond: 10000})
	network := NewNetworkAttributor(provider, &fakeResolver{})
	behavior := NewBehaviorTracker(BehaviorConfig{})
	return NewDetector(network, behavior, NewHeuristics(nil, nil))
}

func TestDetector(t *testing.T) {
	t.Run("GPTBot from an OpenAI range resolves the tie to user_agent", func(t *testing.T) {
		d := newTestDetector(t)

		attr := d.Detect(context.Background(), Signals{
			UserAgent: "GPTBot/1.0 (+https://openai.com/gptbot)",
			ClientIP:  "23.102.140.115",
			Path:      "/docs",
		})
		if attr == nil {
			t.Fatal("expected an attribution")
		}
		if attr.Company != "openai" {
			t.Errorf("expected openai, got %s", attr.Company)
		}
		if attr.Method != MethodUserAgent {
			t.Errorf("expected tie-break to user_agent, got %s", attr.Method)
		}
		if attr.Confidence != 0.9 {
			t.Errorf("expected confidence 0.9, got %f", attr.Confidence)
		}
		if len(attr.Alternatives) == 0 {
			t.Fatal("expected the network match among alternatives")
		}
		if attr.Alternatives[0].Method != MethodIPRange || attr.Alternatives[0].Confidence != 0.9 {
			t.Errorf("expected ip_range 0.9 alternative, got %+v", attr.Alternatives[0])
		}
	})

	t.Run("higher-confidence later producer overrides earlier one", func(t *testing.T) {
		d := newTestDetector(t)

		// Partial UA match (0.8) against the OpenAI range match (0.9).
		attr := d.Detect(context.Background(), Signals{
			UserAgent: "research tool via openai api",
			ClientIP:  "23.102.140.115",
		})
		if attr == nil {
			t.Fatal("expected an attribution")
		}
		if attr.Method != MethodIPRange {
			t.Errorf("expected ip_range to win at 0.9 over 0.8, got %s", attr.Method)
		}
	})

	t.Run("no signals yields nil and no stats", func(t *testing.T) {
		d := newTestDetector(t)

		attr := d.Detect(context.Background(), Signals{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0",
			ClientIP:  "198.51.100.77",
			Path:      "/",
		})
		if attr != nil {
			t.Errorf("expected nil, got %+v", attr)
		}
		if got := d.Stats().TotalDetections; got != 0 {
			t.Errorf("expected 0 detections, got %d", got)
		}
	})

	t.Run("missing IP skips network and behavior producers", func(t *testing.T) {
		d := newTestDetector(t)

		attr := d.Detect(context.Background(), Signals{UserAgent: "ClaudeBot/1.0"})
		if attr == nil {
			t.Fatal("expected a signature attribution")
		}
		if attr.Method != MethodUserAgent || attr.Company != "anthropic" {
			t.Errorf("unexpected attribution: %+v", attr)
		}
	})

	t.Run("enhanced mode merges heuristic candidates", func(t *testing.T) {
		d := newTestDetector(t)
		d.Enhanced = true

		attr := d.Detect(context.Background(), Signals{
			UserAgent: "python-requests/2.31.0",
			ClientIP:  "198.51.100.88",
			Referrer:  "https://chat.openai.com/c/123",
			Headers:   map[string]string{"User-Agent": "python-requests/2.31.0"},
		})
		if attr == nil {
			t.Fatal("expected an attribution")
		}
		if attr.Method != MethodSuspiciousReferrer {
			t.Errorf("expected suspicious_referrer (0.55) on top, got %s", attr.Method)
		}
		methods := map[Method]bool{}
		for _, alt := range attr.Alternatives {
			methods[alt.Method] = true
		}
		if !methods[MethodSuspiciousUA] || !methods[MethodHeaderAnalysis] {
			t.Errorf("expected UA and header heuristics among alternatives, got %+v", attr.Alternatives)
		}
	})

	t.Run("enhanced producers stay off outside enhanced mode", func(t *testing.T) {
		d := newTestDetector(t)

		attr := d.Detect(context.Background(), Signals{
			UserAgent: "python-requests/2.31.0",
			Referrer:  "https://chat.openai.com/c/123",
		})
		if attr != nil {
			t.Errorf("expected nil without enhanced mode, got %+v", attr)
		}
	})

	t.Run("stats and hook observe every detection", func(t *testing.T) {
		d := newTestDetector(t)
		var hooked []*Attribution
		d.OnDetection = func(a *Attribution) { hooked = append(hooked, a) }

		d.Detect(context.Background(), Signals{UserAgent: "GPTBot/1.0"})
		d.Detect(context.Background(), Signals{UserAgent: "ClaudeBot/1.0"})

		stats := d.Stats()
		if stats.TotalDetections != 2 {
			t.Errorf("expected 2 detections, got %d", stats.TotalDetections)
		}
		if stats.ByCompany["openai"] != 1 || stats.ByCompany["anthropic"] != 1 {
			t.Errorf("unexpected company counts: %+v", stats.ByCompany)
		}
		if stats.ByMethod[string(MethodUserAgent)] != 2 {
			t.Errorf("unexpected method counts: %+v", stats.ByMethod)
		}
		if len(hooked) != 2 {
			t.Errorf("expected 2 hook calls, got %d", len(hooked))
		}

		d.ResetStats()
		if d.Stats().TotalDetections != 0 {
			t.Error("expected stats to reset")
		}
	})

	t.Run("private IP never reaches the lookup backend", func(t *testing.T) {
		var called bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		provider := NewIPInfoProvider(IPInfoConfig{LookupURL: srv.URL + "/%s", RatePerSecond: 10000})
		network := NewNetworkAttributor(provider, &fakeResolver{})
		d := NewDetector(network, NewBehaviorTracker(BehaviorConfig{}), NewHeuristics(nil, nil))

		for _, ua := range []string{"GPTBot/1.0", "Mozilla/5.0", ""} {
			d.Detect(context.Background(), Signals{UserAgent: ua, ClientIP: "127.0.0.1"})
		}
		if called {
			t.Error("127.0.0.1 must never trigger an external geolocation call")
		}
	})

	t.Run("guided path predicate is consumed as provided", func(t *testing.T) {
		d := newTestDetector(t)
		if d.IsGuidedPath("/docs") {
			t.Error("expected false with no predicate")
		}
		d.GuidedPath = func(path string) bool { return strings.HasPrefix(path, "/docs") }
		if !d.IsGuidedPath("/docs/intro") || d.IsGuidedPath("/blog") {
			t.Error("predicate not applied as provided")
		}
	})
}
