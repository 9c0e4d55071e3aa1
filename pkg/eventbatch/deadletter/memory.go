package deadletter

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds a MemoryStore created with capacity <= 0.
const DefaultMemoryCapacity = 10000

// MemoryStore is an in-memory Store. When full, the oldest record is
// overwritten. Suitable for testing and single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []*Record
	capacity int
	closed   bool

	// OnPut is called after each stored record.
	OnPut func(*Record)
}

// NewMemoryStore creates a store holding at most capacity records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// Put implements Sink.
func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	if rec.ID == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if len(s.records) >= s.capacity {
		s.records[0] = nil
		s.records = s.records[1:]
	}
	cp := *rec
	s.records = append(s.records, &cp)
	onPut := s.OnPut
	s.mu.Unlock()

	if onPut != nil {
		onPut(&cp)
	}
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Record, n)
	for i := 0; i < n; i++ {
		cp := *s.records[i]
		out[i] = &cp
	}
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	return len(s.records), nil
}

// Close implements Store. Closing twice is safe.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
	return nil
}
