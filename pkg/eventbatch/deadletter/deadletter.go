// Package deadletter stores events that exhausted their retry budget.
//
// The dispatcher's default behavior drops such events after logging them.
// Configuring a Sink keeps a copy for inspection or manual replay; a failed
// Put is logged and never blocks delivery of other events.
package deadletter

import (
	"context"
	"errors"
	"time"
)

// Record is one retry-exhausted event.
type Record struct {
	ID         string         `json:"id"`
	BatchID    string         `json:"batch_id"`
	EventName  string         `json:"event_name"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	RetryCount int            `json:"retry_count"`
	LastError  string         `json:"last_error"`
	DeadAt     time.Time      `json:"dead_at"`
}

// Sink receives retry-exhausted events.
type Sink interface {
	Put(ctx context.Context, rec *Record) error
}

// Store is a Sink that can also be inspected.
// Implementations must be safe for concurrent use.
type Store interface {
	Sink

	// List returns up to limit records, oldest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases any resources.
	Close() error
}

// Sentinel errors for dead-letter operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("dead-letter store closed")

	// ErrMissingID indicates a record without an ID.
	ErrMissingID = errors.New("dead-letter record has no id")
)
