package httpx

import (
	"net/http"
	"strconv"
	"time"
)

// NewMux wires all routes with their middleware.
func NewMux(env Env) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", env.Healthz)
	mux.HandleFunc("/readyz", env.Readyz)
	mux.Handle("/api/v1/detect", env.instrument("/api/v1/detect", http.HandlerFunc(env.Detect)))
	mux.Handle("/api/v1/stats", env.instrument("/api/v1/stats", http.HandlerFunc(env.Stats)))
	mux.Handle("/api/v1/stats/reset", env.instrument("/api/v1/stats/reset", http.HandlerFunc(env.ResetStats)))
	mux.Handle("/api/v1/usage", env.instrument("/api/v1/usage", http.HandlerFunc(env.Usage)))

	return RequestLogger(cors(mux))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts and times requests per endpoint when metrics are
// enabled.
func (e Env) instrument(endpoint string, next http.Handler) http.Handler {
	if e.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		e.Metrics.IncrementHTTPRequests(endpoint, r.Method, strconv.Itoa(rec.status))
		e.Metrics.ObserveHTTPDuration(endpoint, r.Method, time.Since(start))
	})
}
