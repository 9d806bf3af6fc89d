package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/detect"
	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/event"
	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/metrics"
	cfg "github.com/Synaptic-Labs-AI/LLM-Scraping/pkg/config"
)

type Env struct {
	Cfg      cfg.Config
	Detector *detect.Detector
	Provider *detect.IPInfoProvider // usage stats endpoint
	Metrics  *metrics.Metrics       // optional
	Emit     func(event.Event)      // injected sink fan-out
}

func (e Env) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (e Env) Readyz(w http.ResponseWriter, r *http.Request) {
	if e.Detector == nil {
		http.Error(w, "detector not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// detectRequest is the external classification API payload. Collaborating
// services (edge proxies, log shippers) post signals they observed.
type detectRequest struct {
	UserAgent string            `json:"user_agent"`
	ClientIP  string            `json:"client_ip"`
	Hostname  string            `json:"hostname,omitempty"`
	Referrer  string            `json:"referrer,omitempty"`
	Path      string            `json:"path,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type detectResponse struct {
	Detected    bool                `json:"detected"`
	Attribution *detect.Attribution `json:"attribution,omitempty"`
	GuidedPath  bool                `json:"guided_path,omitempty"`
}

// Detect classifies externally submitted request signals.
func (e Env) Detect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req detectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	attr := e.Detector.Detect(r.Context(), detect.Signals{
		UserAgent: req.UserAgent,
		ClientIP:  req.ClientIP,
		Hostname:  req.Hostname,
		Referrer:  req.Referrer,
		Path:      req.Path,
		Headers:   req.Headers,
	})

	if attr != nil && e.Emit != nil {
		ev := event.New(event.RequestInfo{
			Host:      req.Hostname,
			Path:      req.Path,
			UserAgent: req.UserAgent,
			ClientIP:  req.ClientIP,
			Referrer:  req.Referrer,
		}, attr)
		ev.SensitivePath = e.Detector.IsGuidedPath(req.Path)
		e.Emit(ev)
	}

	writeJSON(w, detectResponse{
		Detected:    attr != nil,
		Attribution: attr,
		GuidedPath:  e.Detector.IsGuidedPath(req.Path),
	})
}

// Stats reports the process-lifetime detection counters.
func (e Env) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, e.Detector.Stats())
}

// ResetStats zeroes the detection counters on explicit request.
func (e Env) ResetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	e.Detector.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

// Usage reports the IP info provider's quota and cache state.
func (e Env) Usage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if e.Provider == nil {
		http.Error(w, "provider not configured", http.StatusNotFound)
		return
	}
	writeJSON(w, e.Provider.UsageStats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
