package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/event"
	cfg "github.com/Synaptic-Labs-AI/LLM-Scraping/pkg/config"
)

func TestClassifyMiddleware(t *testing.T) {
	t.Run("never blocks the response and emits asynchronously", func(t *testing.T) {
		env, _ := newTestEnv(t)
		events := make(chan event.Event, 1)
		env.Emit = func(e event.Event) { events <- e }

		var served bool
		handler := env.Classify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			served = true
			w.WriteHeader(http.StatusOK)
		}))

		r := httptest.NewRequest("GET", "/docs/intro", nil)
		r.Header.Set("User-Agent", "GPTBot/1.0")
		r.RemoteAddr = "198.51.100.30:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if !served || w.Code != http.StatusOK {
			t.Fatalf("wrapped handler not served: %d", w.Code)
		}

		select {
		case ev := <-events:
			if ev.Detection == nil || ev.Detection.Company != "openai" {
				t.Errorf("unexpected event: %+v", ev)
			}
			if !ev.SensitivePath {
				t.Error("expected sensitive path flag for /docs")
			}
			if ev.Request.ClientIP != "198.51.100.30" {
				t.Errorf("unexpected client IP %q", ev.Request.ClientIP)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no event emitted")
		}
	})

	t.Run("skips paths outside the monitored prefix", func(t *testing.T) {
		env, _ := newTestEnv(t)
		env.Cfg = cfg.Config{MonitoredPrefix: "/app"}
		events := make(chan event.Event, 1)
		env.Emit = func(e event.Event) { events <- e }

		handler := env.Classify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		r := httptest.NewRequest("GET", "/other/path", nil)
		r.Header.Set("User-Agent", "GPTBot/1.0")
		handler.ServeHTTP(httptest.NewRecorder(), r)

		select {
		case ev := <-events:
			t.Errorf("unexpected event for unmonitored path: %+v", ev)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("clean traffic emits nothing", func(t *testing.T) {
		env, _ := newTestEnv(t)
		events := make(chan event.Event, 1)
		env.Emit = func(e event.Event) { events <- e }

		handler := env.Classify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0")
		r.Header.Set("Accept", "text/html")
		r.Header.Set("Accept-Language", "en-US")
		r.Header.Set("Accept-Encoding", "gzip")
		r.RemoteAddr = "198.51.100.31:5000"
		handler.ServeHTTP(httptest.NewRecorder(), r)

		select {
		case ev := <-events:
			t.Errorf("unexpected event: %+v", ev)
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func TestRequestLoggerAndCORS(t *testing.T) {
	t.Run("cors preflight short-circuits", func(t *testing.T) {
		handler := cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("wrapped handler must not run on OPTIONS")
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/v1/detect", nil))
		if w.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("expected CORS headers")
		}
	})

	t.Run("request logger passes through", func(t *testing.T) {
		handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
		if w.Code != http.StatusTeapot {
			t.Errorf("expected passthrough status, got %d", w.Code)
		}
	})
}
