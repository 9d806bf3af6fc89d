package sink

import (
	"context"
	"encoding/json"
	"log"

	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/event"
)

// LogSink writes each detection event as one NDJSON log line.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Start(ctx context.Context) error { return nil }

func (s *LogSink) Enqueue(e event.Event) error {
	b, _ := json.Marshal(e)
	log.Printf("detection %s", string(b))
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }
