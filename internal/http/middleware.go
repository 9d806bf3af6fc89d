package httpx

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/event"
)

func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s ua=%q dur=%s", r.Method, r.URL.Path, r.UserAgent(), time.Since(start))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Very permissive for dev; tighten in production.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Classify runs the detection pipeline against every request under the
// monitored prefix. The pipeline runs off the request path so slow
// external lookups never delay the response; completed lookups still
// warm the cache even if the client has gone.
func (e Env) Classify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if e.Cfg.MonitoredPrefix == "" || strings.HasPrefix(r.URL.Path, e.Cfg.MonitoredPrefix) {
			sig := event.SignalsFromRequest(r, e.Cfg.TrustProxy)
			info := event.RequestInfoFrom(r, sig)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				attr := e.Detector.Detect(ctx, sig)
				if e.Metrics != nil {
					outcome := "clean"
					if attr != nil {
						outcome = "detected"
					}
					e.Metrics.IncrementRequestsAnalyzed(outcome)
				}
				if attr == nil || e.Emit == nil {
					return
				}
				ev := event.New(info, attr)
				ev.SensitivePath = e.Detector.IsGuidedPath(sig.Path)
				e.Emit(ev)
			}()
		}
		next.ServeHTTP(w, r)
	})
}
