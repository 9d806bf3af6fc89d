package metrics

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the Prometheus metrics for the detection service
type Metrics struct {
	// Counters
	DetectionsTotal  *prometheus.CounterVec
	RequestsAnalyzed *prometheus.CounterVec
	EventsEmitted    *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec

	// Gauges
	IPInfoCacheSize prometheus.Gauge
	IPInfoQuotaUsed prometheus.Gauge
	BehaviorKeys    prometheus.Gauge

	// Histograms
	DetectDuration *prometheus.HistogramVec
	HTTPDuration   *prometheus.HistogramVec
}

// Config holds configuration for the metrics server
type Config struct {
	Enabled    bool
	Addr       string
	TLSCert    string
	TLSKey     string
	RequireTLS bool
}

// LoadConfig loads metrics configuration from environment variables
func LoadConfig() Config {
	return Config{
		Enabled:    getBool("METRICS_ENABLED", false),
		Addr:       getOr("METRICS_ADDR", "127.0.0.1:9090"),
		TLSCert:    getOr("METRICS_TLS_CERT", ""),
		TLSKey:     getOr("METRICS_TLS_KEY", ""),
		RequireTLS: getBool("METRICS_REQUIRE_TLS", false),
	}
}

// NewMetrics creates all detection metrics and registers them on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DetectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmscraping_detections_total",
				Help: "Total attributions by method and company",
			},
			[]string{"method", "company"},
		),

		RequestsAnalyzed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmscraping_requests_analyzed_total",
				Help: "Requests run through the detection pipeline by outcome",
			},
			[]string{"outcome"},
		),

		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmscraping_events_emitted_total",
				Help: "Detection events emitted by sink",
			},
			[]string{"sink"},
		),

		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmscraping_sink_errors_total",
				Help: "Total errors writing to a sink",
			},
			[]string{"sink", "error_type"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmscraping_http_requests_total",
				Help: "Total HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		IPInfoCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "llmscraping_ipinfo_cache_size",
			Help: "Entries in the IP info cache",
		}),

		IPInfoQuotaUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "llmscraping_ipinfo_quota_used",
			Help: "External lookups consumed in the current quota window",
		}),

		BehaviorKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "llmscraping_behavior_keys",
			Help: "Client keys currently tracked by the behavior analyzer",
		}),

		DetectDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmscraping_detect_duration_seconds",
				Help:    "Latency of one detection pipeline run",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"enhanced"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmscraping_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method"},
		),
	}

	reg.MustRegister(
		m.DetectionsTotal,
		m.RequestsAnalyzed,
		m.EventsEmitted,
		m.SinkErrors,
		m.HTTPRequests,
		m.IPInfoCacheSize,
		m.IPInfoQuotaUsed,
		m.BehaviorKeys,
		m.DetectDuration,
		m.HTTPDuration,
	)

	return m
}

// Server represents the metrics HTTP server
type Server struct {
	server *http.Server
	config Config
}

// NewServer creates a new metrics server
func NewServer(config Config) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// Simple health check endpoint for the metrics server
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    config.Addr,
		Handler: mux,
		// Timeouts prevent resource exhaustion
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.RequireTLS && config.TLSCert != "" && config.TLSKey != "" {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Server{
		server: srv,
		config: config,
	}
}

// Start starts the metrics server in a separate goroutine
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		log.Printf("metrics: disabled (METRICS_ENABLED=false)")
		return nil
	}

	go func() {
		var err error
		if s.config.RequireTLS && s.config.TLSCert != "" && s.config.TLSKey != "" {
			log.Printf("metrics: HTTPS server listening on %s", s.config.Addr)
			err = s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
		} else {
			log.Printf("metrics: HTTP server listening on %s", s.config.Addr)
			err = s.server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	log.Printf("metrics: shutting down server...")
	return s.server.Shutdown(ctx)
}

// Helper functions
func getOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Convenience methods for common operations
func (m *Metrics) IncrementDetections(method, company string) {
	m.DetectionsTotal.WithLabelValues(method, company).Inc()
}

func (m *Metrics) IncrementRequestsAnalyzed(outcome string) {
	m.RequestsAnalyzed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementEventsEmitted(sink string) {
	m.EventsEmitted.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncrementSinkErrors(sink, errorType string) {
	m.SinkErrors.WithLabelValues(sink, errorType).Inc()
}

func (m *Metrics) IncrementHTTPRequests(endpoint, method, status string) {
	m.HTTPRequests.WithLabelValues(endpoint, method, status).Inc()
}

func (m *Metrics) ObserveDetectDuration(enhanced bool, duration time.Duration) {
	label := "false"
	if enhanced {
		label = "true"
	}
	m.DetectDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func (m *Metrics) ObserveHTTPDuration(endpoint, method string, duration time.Duration) {
	m.HTTPDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}
