package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/eventbatch/pkg/eventbatch"
)

// SQLiteSink appends every delivered event to a local SQLite table, one
// transaction per batch. Useful as a durable local collector or in tests.
type SQLiteSink struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteSink opens (or creates) the events database at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL,
			name TEXT NOT NULL,
			payload BLOB,
			event_ts TEXT NOT NULL,
			received_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_batch ON events(batch_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Deliver implements eventbatch.Deliverer.
func (s *SQLiteSink) Deliver(ctx context.Context, batch *eventbatch.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return eventbatch.ErrEmptyBatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sqlite sink closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (batch_id, name, payload, event_ts, received_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	received := time.Now().UTC().Format(time.RFC3339Nano)
	for _, evt := range batch.Events {
		var payload []byte
		if len(evt.Payload) > 0 {
			if payload, err = json.Marshal(evt.Payload); err != nil {
				return fmt.Errorf("encode payload for %s: %w", evt.Name, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, batch.ID, evt.Name, payload,
			evt.Timestamp.UTC().Format(time.RFC3339Nano), received); err != nil {
			return fmt.Errorf("insert event %s: %w", evt.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch %s: %w", batch.ID, err)
	}
	return nil
}

// Count returns the number of stored events.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ListBatch returns the events stored for batchID in delivery order.
func (s *SQLiteSink) ListBatch(ctx context.Context, batchID string) ([]eventbatch.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, payload, event_ts FROM events WHERE batch_id = ? ORDER BY seq
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch: %w", err)
	}
	defer rows.Close()

	var events []eventbatch.Event
	for rows.Next() {
		var (
			evt     eventbatch.Event
			payload []byte
			ts      string
		)
		if err := rows.Scan(&evt.Name, &payload, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &evt.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for %s: %w", evt.Name, err)
			}
		}
		evt.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
