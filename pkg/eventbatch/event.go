package eventbatch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Event is a single analytics signal. Events are immutable once created.
type Event struct {
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an Event stamped with ts. The payload is deep-copied so
// later changes by the caller do not leak into the queued event.
func NewEvent(name string, payload map[string]any, ts time.Time) Event {
	return Event{
		Name:      name,
		Payload:   clonePayload(payload),
		Timestamp: ts,
	}
}

// clonePayload copies nested map[string]any and []any values. Other values
// are copied by assignment.
func clonePayload(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return clonePayload(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// SameSignal reports whether e and other carry the same name and payload.
// Timestamps are ignored: two submissions with identical name and payload
// are the same logical signal. A nil payload equals an empty one.
func (e Event) SameSignal(other Event) bool {
	if e.Name != other.Name {
		return false
	}
	if len(e.Payload) == 0 && len(other.Payload) == 0 {
		return true
	}
	return reflect.DeepEqual(e.Payload, other.Payload)
}

// fingerprint hashes name and payload for the dedup index. JSON encoding
// sorts map keys, so equal payloads hash equally; SameSignal remains the
// final equality check.
func (e Event) fingerprint() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(e.Name)
	_, _ = h.Write([]byte{0})
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			// fmt also prints maps in sorted key order.
			b = []byte(fmt.Sprintf("%v", e.Payload))
		}
		_, _ = h.Write(b)
	}
	return h.Sum64()
}

// QueuedEvent wraps an Event with delivery-attempt bookkeeping.
type QueuedEvent struct {
	Event      Event
	RetryCount int

	fp uint64
}

// Batch is the unit handed to a Deliverer: every event drained by one flush,
// in submission order.
type Batch struct {
	ID        string    `json:"batch_id"`
	Events    []Event   `json:"events"`
	CreatedAt time.Time `json:"created_at"`
}

// Len returns the number of events in the batch.
func (b *Batch) Len() int {
	return len(b.Events)
}

func newBatch(items []*QueuedEvent, now time.Time) *Batch {
	events := make([]Event, len(items))
	for i, qe := range items {
		events[i] = qe.Event
	}
	return &Batch{
		ID:        uuid.NewString(),
		Events:    events,
		CreatedAt: now,
	}
}
