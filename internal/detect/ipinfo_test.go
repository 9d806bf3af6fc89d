package detect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newLookupServer(t *testing.T, calls *int64, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const sampleLookupJSON = `{"status":"success","country":"United States","regionName":"California","city":"San Francisco","org":"OpenAI, LLC","as":"AS8075 Microsoft Corporation","lat":37.77,"lon":-122.41,"proxy":false,"hosting":true,"mobile":false}`

func testProvider(srv *httptest.Server, maxDaily int) *IPInfoProvider {
	return NewIPInfoProvider(IPInfoConfig{
		LookupURL:     srv.URL + "/%s",
		MaxDaily:      maxDaily,
		RatePerSecond: 10000,
	})
}

func TestIPInfoProvider(t *testing.T) {
	t.Run("invalid syntax returns unknown without lookup or cache write", func(t *testing.T) {
		var calls int64
		srv := newLookupServer(t, &calls, sampleLookupJSON)
		p := testProvider(srv, 10)

		info := p.Resolve(context.Background(), "not-an-ip")
		if info.IP != "not-an-ip" || info.Organization != "" {
			t.Errorf("expected bare unknown sentinel, got %+v", info)
		}
		if calls != 0 {
			t.Errorf("expected no external calls, got %d", calls)
		}
		if p.UsageStats().CacheSize != 0 {
			t.Error("invalid input must not be cached")
		}
	})

	t.Run("private addresses return the private sentinel without calls", func(t *testing.T) {
		var calls int64
		srv := newLookupServer(t, &calls, sampleLookupJSON)
		p := testProvider(srv, 10)

		for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.5", "169.254.1.1", "::1", "fe80::1"} {
			info := p.Resolve(context.Background(), ip)
			if info.Organization != "Private Network" {
				t.Errorf("%s: expected private sentinel, got %+v", ip, info)
			}
		}
		if calls != 0 {
			t.Errorf("expected no external calls, got %d", calls)
		}
		stats := p.UsageStats()
		if stats.RequestCount != 0 || stats.CacheSize != 0 {
			t.Errorf("private lookups must not count or cache: %+v", stats)
		}
	})

	t.Run("second lookup within TTL hits cache and leaves quota alone", func(t *testing.T) {
		var calls int64
		srv := newLookupServer(t, &calls, sampleLookupJSON)
		p := testProvider(srv, 10)

		first := p.Resolve(context.Background(), "23.102.140.115")
		second := p.Resolve(context.Background(), "23.102.140.115")

		if calls != 1 {
			t.Fatalf("expected 1 external call, got %d", calls)
		}
		if first.Organization != "OpenAI, LLC" || first.ASN != "AS8075" {
			t.Errorf("unexpected parsed info: %+v", first)
		}
		if second != first {
			t.Errorf("cached value differs: %+v vs %+v", second, first)
		}
		if got := p.UsageStats().RequestCount; got != 1 {
			t.Errorf("expected request count 1, got %d", got)
		}
	})

	t.Run("exhausted quota stops external calls", func(t *testing.T) {
		var calls int64
		srv := newLookupServer(t, &calls, sampleLookupJSON)
		p := testProvider(srv, 1)

		p.Resolve(context.Background(), "8.8.8.8")
		info := p.Resolve(context.Background(), "1.1.1.1")

		if calls != 1 {
			t.Errorf("expected exactly 1 external call, got %d", calls)
		}
		if info.Country != "" {
			t.Errorf("expected unknown sentinel for uncached IP, got %+v", info)
		}

		// The cached IP still resolves from cache.
		cached := p.Resolve(context.Background(), "8.8.8.8")
		if cached.Organization != "OpenAI, LLC" {
			t.Errorf("expected cached value, got %+v", cached)
		}
	})

	t.Run("lookup failure degrades to unknown sentinel", func(t *testing.T) {
		var calls int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt64(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		p := testProvider(srv, 10)

		info := p.Resolve(context.Background(), "8.8.8.8")
		if info.IP != "8.8.8.8" || info.Country != "" {
			t.Errorf("expected unknown sentinel, got %+v", info)
		}
		if got := p.UsageStats().RequestCount; got != 0 {
			t.Errorf("failed lookup must not consume quota, got %d", got)
		}
	})

	t.Run("failed provider status degrades to unknown sentinel", func(t *testing.T) {
		var calls int64
		srv := newLookupServer(t, &calls, `{"status":"fail","message":"reserved range"}`)
		p := testProvider(srv, 10)

		info := p.Resolve(context.Background(), "8.8.8.8")
		if info.Country != "" || info.Organization != "" {
			t.Errorf("expected unknown sentinel, got %+v", info)
		}
	})

	t.Run("sweep removes expired entries", func(t *testing.T) {
		var calls int64
		srv := newLookupServer(t, &calls, sampleLookupJSON)
		p := testProvider(srv, 10)

		p.Resolve(context.Background(), "8.8.8.8")
		if p.UsageStats().CacheSize != 1 {
			t.Fatal("expected one cached entry")
		}

		p.sweep(time.Now().Add(25 * time.Hour))
		if p.UsageStats().CacheSize != 0 {
			t.Error("expected expired entry to be swept")
		}
	})

	t.Run("usage stats report configuration", func(t *testing.T) {
		var calls int64
		srv := newLookupServer(t, &calls, sampleLookupJSON)
		p := testProvider(srv, 42)

		stats := p.UsageStats()
		if stats.MaxRequests != 42 {
			t.Errorf("expected max requests 42, got %d", stats.MaxRequests)
		}
		if stats.LastResetTime.IsZero() {
			t.Error("expected a last reset time")
		}
	})
}

func TestASNFromASField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AS15169 Google LLC", "AS15169"},
		{"AS8075", "AS8075"},
		{"", ""},
		{"  AS32934 Facebook, Inc.  ", "AS32934"},
	}
	for _, tt := range tests {
		if got := asnFromASField(tt.in); got != tt.want {
			t.Errorf("asnFromASField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
