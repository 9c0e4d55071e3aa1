package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists dead-lettered events to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a dead-letter database.
// The path should be a file path (e.g., "./dead.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			batch_id TEXT NOT NULL,
			event_name TEXT NOT NULL,
			payload BLOB,
			event_ts TEXT NOT NULL,
			retry_count INTEGER NOT NULL,
			last_error TEXT NOT NULL,
			dead_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put implements Sink. Re-putting an existing ID replaces it.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	var payload []byte
	if len(rec.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(rec.Payload); err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_events (id, batch_id, event_name, payload, event_ts, retry_count, last_error, dead_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			batch_id = excluded.batch_id,
			retry_count = excluded.retry_count,
			last_error = excluded.last_error,
			dead_at = excluded.dead_at
	`, rec.ID, rec.BatchID, rec.EventName, payload,
		rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.RetryCount, rec.LastError,
		rec.DeadAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put dead-letter record: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, event_name, payload, event_ts, retry_count, last_error, dead_at
		FROM dead_events
		ORDER BY seq
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead-letter records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec             Record
			payload         []byte
			eventTS, deadAt string
		)
		if err := rows.Scan(&rec.ID, &rec.BatchID, &rec.EventName, &payload,
			&eventTS, &rec.RetryCount, &rec.LastError, &deadAt); err != nil {
			return nil, fmt.Errorf("scan dead-letter record: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rec.Payload); err != nil {
				return nil, fmt.Errorf("decode payload for %s: %w", rec.ID, err)
			}
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, eventTS)
		rec.DeadAt, _ = time.Parse(time.RFC3339Nano, deadAt)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead-letter records: %w", err)
	}
	return records, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dead_events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dead-letter record: %w", err)
	}
	return nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead-letter records: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
