package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/Synaptic-Labs-AI/LLM-Scraping/internal/event"
)

// validTableName permits plain identifiers only; anything else is
// rejected before it can reach SQL text.
var validTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PGSink batches detection events into a Postgres table as JSONB rows.
type PGSink struct {
	DSN       string
	TableName string

	db        *sql.DB
	ownsDB    bool
	batchSize int
	flushTick time.Duration

	mu    sync.Mutex
	batch []event.Event

	done     chan struct{}
	stopOnce sync.Once
}

// NewPGSink creates a sink that opens its own connection from dsn.
func NewPGSink(dsn, tableName string) *PGSink {
	return &PGSink{
		DSN:       dsn,
		TableName: tableName,
		ownsDB:    true,
		batchSize: 100,
		flushTick: 5 * time.Second,
		done:      make(chan struct{}),
	}
}

// NewPGSinkWithDB creates a sink over an existing connection (tests).
func NewPGSinkWithDB(db *sql.DB, tableName string) *PGSink {
	return &PGSink{
		TableName: tableName,
		db:        db,
		batchSize: 100,
		flushTick: 5 * time.Second,
		done:      make(chan struct{}),
	}
}

func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name is empty")
	}
	if !validTableName.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

func (s *PGSink) Start(ctx context.Context) error {
	if err := validateTableName(s.TableName); err != nil {
		return err
	}

	if s.db == nil {
		db, err := sql.Open("postgres", s.DSN)
		if err != nil {
			return fmt.Errorf("failed to open postgres connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("failed to ping postgres: %w", err)
		}
		s.db = db
	}

	// Table name is validated above; safe to interpolate.
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		event_id TEXT PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		company TEXT,
		method TEXT,
		confidence DOUBLE PRECISION,
		payload JSONB NOT NULL
	)`, s.TableName)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", s.TableName, err)
	}

	go s.flushLoop(ctx)
	return nil
}

func (s *PGSink) Enqueue(e event.Event) error {
	s.mu.Lock()
	s.batch = append(s.batch, e)
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush()
	}
	return nil
}

// Flush writes all buffered events in one transaction. Failed batches
// are put back for the next attempt.
func (s *PGSink) Flush() error {
	s.mu.Lock()
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := s.insertBatch(batch)
	if err != nil {
		s.mu.Lock()
		s.batch = append(batch, s.batch...)
		s.mu.Unlock()
	}
	return err
}

func (s *PGSink) insertBatch(batch []event.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s (event_id, ts, company, method, confidence, payload)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (event_id) DO NOTHING`,
		s.TableName))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		payload, err := json.Marshal(e)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to serialize event %s: %w", e.EventID, err)
		}
		var company, method string
		var confidence float64
		if e.Detection != nil {
			company = e.Detection.Company
			method = string(e.Detection.Method)
			confidence = e.Detection.Confidence
		}
		if _, err := stmt.Exec(e.EventID, e.TS, company, method, confidence, payload); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert event %s: %w", e.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *PGSink) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				log.Printf("pg: flush failed: %v", err)
			}
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *PGSink) Close() error {
	s.stopOnce.Do(func() { close(s.done) })

	err := s.Flush()
	if s.db != nil && s.ownsDB {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *PGSink) Name() string { return "postgres" }
