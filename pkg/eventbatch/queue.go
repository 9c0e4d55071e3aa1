package eventbatch

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch/observability"
)

// QueueConfig configures a Queue.
type QueueConfig struct {
	// MaxSize is the capacity before the oldest events are evicted.
	// Default: 1000
	MaxSize int

	// MaxRetryCount is the per-event retry budget enforced by RequeueFront.
	// Default: 3
	MaxRetryCount int

	// Logger receives overflow, duplicate and retry-exhaustion records.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics receives drop counts. Default: NoopMetrics.
	Metrics observability.MetricsRecorder
}

// DefaultQueueConfig provides the default capacity and retry budget.
var DefaultQueueConfig = QueueConfig{
	MaxSize:       DefaultMaxQueueSize,
	MaxRetryCount: DefaultMaxRetryCount,
}

// Queue is the bounded, ordered, deduplicated buffer of undelivered events.
//
// Queue is not safe for concurrent use; Dispatcher serializes access to it.
type Queue struct {
	cfg   QueueConfig
	items []*QueuedEvent

	// fingerprint -> number of queued events with that fingerprint
	index map[uint64]int
}

// NewQueue creates an empty queue. Zero config fields take their defaults.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultQueueConfig.MaxSize
	}
	if cfg.MaxRetryCount <= 0 {
		cfg.MaxRetryCount = DefaultQueueConfig.MaxRetryCount
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	return &Queue{
		cfg:   cfg,
		index: make(map[uint64]int),
	}
}

// Enqueue appends evt with a zero retry count.
//
// A submission whose name and payload equal an already queued event is
// discarded and Enqueue returns false. If the queue is full, the oldest
// events are evicted, one warning each, until there is room.
func (q *Queue) Enqueue(evt Event) bool {
	fp := evt.fingerprint()
	if q.contains(evt, fp) {
		observability.LogDuplicate(q.cfg.Logger, evt.Name)
		return false
	}

	for len(q.items) >= q.cfg.MaxSize {
		q.evictOldest()
	}

	q.items = append(q.items, &QueuedEvent{Event: evt, fp: fp})
	q.index[fp]++
	return true
}

// DrainAll removes and returns every queued event in insertion order,
// leaving the queue empty.
func (q *Queue) DrainAll() []*QueuedEvent {
	drained := q.items
	q.items = nil
	clear(q.index)
	return drained
}

// RequeueFront re-inserts events at the head of the queue, preserving their
// relative order. Callers increment RetryCount first; events that reached
// MaxRetryCount are dropped instead. Capacity is enforced afterwards by
// evicting from the head.
func (q *Queue) RequeueFront(events []*QueuedEvent) (requeued, dropped []*QueuedEvent) {
	for _, qe := range events {
		if qe.RetryCount < q.cfg.MaxRetryCount {
			requeued = append(requeued, qe)
			continue
		}
		observability.LogRetryExhausted(q.cfg.Logger, qe.Event.Name, qe.RetryCount)
		q.cfg.Metrics.RecordDrop(context.Background(), observability.ReasonRetryExhausted)
		dropped = append(dropped, qe)
	}

	if len(requeued) > 0 {
		items := make([]*QueuedEvent, 0, len(requeued)+len(q.items))
		items = append(items, requeued...)
		items = append(items, q.items...)
		q.items = items
		for _, qe := range requeued {
			q.index[qe.fp]++
		}
	}

	for len(q.items) > q.cfg.MaxSize {
		q.evictOldest()
	}
	return requeued, dropped
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.items)
}

// Snapshot returns a copy of the queue contents in order.
func (q *Queue) Snapshot() []QueuedEvent {
	out := make([]QueuedEvent, len(q.items))
	for i, qe := range q.items {
		out[i] = *qe
	}
	return out
}

func (q *Queue) contains(evt Event, fp uint64) bool {
	if q.index[fp] == 0 {
		return false
	}
	for _, qe := range q.items {
		if qe.fp == fp && qe.Event.SameSignal(evt) {
			return true
		}
	}
	return false
}

func (q *Queue) evictOldest() {
	oldest := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	q.index[oldest.fp]--
	if q.index[oldest.fp] <= 0 {
		delete(q.index, oldest.fp)
	}

	observability.LogEviction(q.cfg.Logger, oldest.Event.Name, q.cfg.MaxSize)
	q.cfg.Metrics.RecordDrop(context.Background(), observability.ReasonOverflow)
}
