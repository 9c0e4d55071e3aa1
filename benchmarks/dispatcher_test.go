package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var okDeliverer = eventbatch.DelivererFunc(func(context.Context, *eventbatch.Batch) error {
	return nil
})

var failDeliverer = eventbatch.DelivererFunc(func(context.Context, *eventbatch.Batch) error {
	return fmt.Errorf("collector unavailable")
})

func newDispatcher(b *testing.B, d eventbatch.Deliverer, opts ...eventbatch.Option) *eventbatch.Dispatcher {
	b.Helper()
	opts = append([]eventbatch.Option{
		eventbatch.WithClock(quartz.NewMock(b)),
		eventbatch.WithLogger(discard),
	}, opts...)
	disp := eventbatch.New(d, opts...)
	b.Cleanup(func() {
		// Cancelled so a failing Close does not wait on the mock clock.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = disp.Close(ctx)
	})
	return disp
}

func payloads(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"user_id": i, "path": "/page", "tags": []any{"a", "b"}}
	}
	return out
}

// BenchmarkRecordEvent_Distinct records distinct events into a large queue.
func BenchmarkRecordEvent_Distinct(b *testing.B) {
	disp := newDispatcher(b, okDeliverer, eventbatch.WithMaxQueueSize(1<<20))
	ps := payloads(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		disp.RecordEvent("page_view", ps[i%len(ps)])
		if i%len(ps) == len(ps)-1 {
			b.StopTimer()
			_ = disp.Flush(context.Background())
			b.StartTimer()
		}
	}
}

// BenchmarkRecordEvent_Duplicate records the same event repeatedly.
func BenchmarkRecordEvent_Duplicate(b *testing.B) {
	disp := newDispatcher(b, okDeliverer)
	p := payloads(1)[0]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		disp.RecordEvent("page_view", p)
	}
}

// BenchmarkRecordEvent_Overflow records into a full queue, evicting each time.
func BenchmarkRecordEvent_Overflow(b *testing.B) {
	disp := newDispatcher(b, okDeliverer, eventbatch.WithMaxQueueSize(100))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		disp.RecordEvent("tick", map[string]any{"i": i})
	}
}

// BenchmarkFlush_100 flushes batches of 100 events.
func BenchmarkFlush_100(b *testing.B) {
	benchmarkFlush(b, 100, okDeliverer)
}

// BenchmarkFlush_1000 flushes full default-size batches.
func BenchmarkFlush_1000(b *testing.B) {
	benchmarkFlush(b, 1000, okDeliverer)
}

// BenchmarkFlush_Failure_1000 measures failure reconciliation.
func BenchmarkFlush_Failure_1000(b *testing.B) {
	benchmarkFlush(b, 1000, failDeliverer)
}

func benchmarkFlush(b *testing.B, n int, d eventbatch.Deliverer) {
	disp := newDispatcher(b, d, eventbatch.WithMaxRetryCount(1<<30))
	ps := payloads(n)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for _, p := range ps {
			disp.RecordEvent("page_view", p)
		}
		b.StartTimer()
		_ = disp.Flush(ctx)
	}
}

// BenchmarkQueue_Enqueue measures the raw queue with deduplication.
func BenchmarkQueue_Enqueue(b *testing.B) {
	q := eventbatch.NewQueue(eventbatch.QueueConfig{MaxSize: 1000, Logger: discard})
	ps := payloads(1000)
	now := time.Now()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Enqueue(eventbatch.NewEvent("page_view", ps[i%len(ps)], now))
		if q.Len() == 1000 {
			q.DrainAll()
		}
	}
}
