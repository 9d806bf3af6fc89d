package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/detect"
	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/event"
	httpx "github.com/Synaptic-Labs-AI/LLM-Scraping/internal/http"
	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/metrics"
	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/sink"
	"github.com/Synaptic-Labs-AI/LLM-Scraping/pkg/config"
)

func main() {
	testMode := flag.Bool("test", false, "run canned crawler scenarios through the pipeline and exit")
	flag.Parse()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics (optional, env-gated)
	metricsCfg := metrics.LoadConfig()
	var m *metrics.Metrics
	var metricsSrv *metrics.Server
	if metricsCfg.Enabled {
		m = metrics.NewMetrics(prometheus.DefaultRegisterer)
		metricsSrv = metrics.NewServer(metricsCfg)
		_ = metricsSrv.Start(ctx)
	}

	// Detection pipeline
	provider := detect.NewIPInfoProvider(detect.IPInfoConfig{
		LookupURL:     cfg.IPInfoURL,
		MaxDaily:      cfg.IPInfoMaxDaily,
		CacheTTL:      cfg.IPInfoTTL,
		LookupTimeout: cfg.IPInfoTimeout,
		RatePerSecond: cfg.IPInfoRate,
	})
	provider.Start(ctx)
	defer provider.Close()

	behavior := detect.NewBehaviorTracker(detect.BehaviorConfig{
		RapidWindow:     cfg.RapidWindow,
		RapidThreshold:  cfg.RapidThreshold,
		SpreadThreshold: cfg.SpreadThreshold,
		Retention:       cfg.Retention,
	})
	behavior.Start(ctx)
	defer behavior.Close()

	resolver := detect.NewDNSResolver(cfg.DNSResolver, cfg.DNSTimeout)
	detector := detect.NewDetector(
		detect.NewNetworkAttributor(provider, resolver),
		behavior,
		detect.NewHeuristics(cfg.SuspiciousUA, cfg.AIReferrers),
	)
	detector.Enhanced = cfg.Enhanced
	detector.GuidedPath = cfg.PathPredicate()
	if m != nil {
		detector.OnDetection = func(a *detect.Attribution) {
			m.IncrementDetections(string(a.Method), a.Company)
		}
	}

	// Sinks
	sinks := initializeSinks(ctx, cfg.Outputs)
	emit := createEmitFunc(sinks, m)
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				log.Printf("sink %s: close failed: %v", s.Name(), err)
			}
		}
	}()

	if *testMode {
		runTestMode(detector, emit)
		return
	}

	env := httpx.Env{
		Cfg:      cfg,
		Detector: detector,
		Provider: provider,
		Metrics:  m,
		Emit:     emit,
	}

	var handler http.Handler = httpx.NewMux(env)
	if cfg.MonitoredPrefix != "" {
		handler = env.Classify(handler)
	}

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("llmscraping listening on %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// initializeSinks builds the configured sinks, starting each one. A sink
// that fails to start is skipped so the others still run.
func initializeSinks(ctx context.Context, outputs []string) []sink.Sink {
	var sinks []sink.Sink
	for _, output := range outputs {
		var s sink.Sink
		switch output {
		case "log":
			s = sink.NewLogSink()
		case "kafka":
			s = sink.NewKafkaSinkFromEnv()
		case "postgres":
			s = sink.NewPGSink(os.Getenv("PG_DSN"), envOr("PG_TABLE", "detections"))
		default:
			log.Printf("unknown output %q, skipping", output)
			continue
		}
		if err := s.Start(ctx); err != nil {
			log.Printf("sink %s: start failed: %v", s.Name(), err)
			continue
		}
		sinks = append(sinks, s)
	}
	return sinks
}

// createEmitFunc fans an event out to every sink. One sink failing does
// not stop delivery to the rest.
func createEmitFunc(sinks []sink.Sink, m *metrics.Metrics) func(event.Event) {
	return func(ev event.Event) {
		for _, s := range sinks {
			if err := s.Enqueue(ev); err != nil {
				log.Printf("sink %s: enqueue failed: %v", s.Name(), err)
				if m != nil {
					m.IncrementSinkErrors(s.Name(), "enqueue")
				}
				continue
			}
			if m != nil {
				m.IncrementEventsEmitted(s.Name())
			}
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
