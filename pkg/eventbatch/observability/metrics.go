package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Reasons attached to dropped-event metrics.
const (
	ReasonOverflow       = "overflow"
	ReasonRetryExhausted = "retry_exhausted"
	ReasonShutdown       = "shutdown"
)

// MetricsRecorder records dispatcher metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEnqueue records a submission; duplicate is true when it was discarded.
	RecordEnqueue(ctx context.Context, duplicate bool)

	// RecordDrop records an event lost to overflow, retry exhaustion or shutdown.
	RecordDrop(ctx context.Context, reason string)

	// RecordRequeue records events put back at the head of the queue.
	RecordRequeue(ctx context.Context, count int)

	// RecordFlush records a delivery attempt with its batch size and outcome.
	RecordFlush(ctx context.Context, size int, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	recorded     metric.Int64Counter
	deduplicated metric.Int64Counter
	dropped      metric.Int64Counter
	requeued     metric.Int64Counter
	flushes      metric.Int64Counter
	flushLatency metric.Float64Histogram
	batchSize    metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventbatch")

	recorded, err := meter.Int64Counter("eventbatch.events.recorded",
		metric.WithDescription("Number of events accepted into the queue"),
	)
	if err != nil {
		return nil, err
	}

	deduplicated, err := meter.Int64Counter("eventbatch.events.deduplicated",
		metric.WithDescription("Number of submissions discarded as duplicates"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("eventbatch.events.dropped",
		metric.WithDescription("Number of events lost to overflow or retry exhaustion"),
	)
	if err != nil {
		return nil, err
	}

	requeued, err := meter.Int64Counter("eventbatch.events.requeued",
		metric.WithDescription("Number of events re-queued after a failed delivery"),
	)
	if err != nil {
		return nil, err
	}

	flushes, err := meter.Int64Counter("eventbatch.flush.count",
		metric.WithDescription("Number of batch delivery attempts"),
	)
	if err != nil {
		return nil, err
	}

	flushLatency, err := meter.Float64Histogram("eventbatch.flush.latency_ms",
		metric.WithDescription("Batch delivery latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram("eventbatch.batch.size",
		metric.WithDescription("Number of events per delivered batch"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		recorded:     recorded,
		deduplicated: deduplicated,
		dropped:      dropped,
		requeued:     requeued,
		flushes:      flushes,
		flushLatency: flushLatency,
		batchSize:    batchSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEnqueue records a submission.
func (m *otelMetrics) RecordEnqueue(ctx context.Context, duplicate bool) {
	if duplicate {
		m.deduplicated.Add(ctx, 1)
		return
	}
	m.recorded.Add(ctx, 1)
}

// RecordDrop records a lost event.
func (m *otelMetrics) RecordDrop(ctx context.Context, reason string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRequeue records re-queued events.
func (m *otelMetrics) RecordRequeue(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.requeued.Add(ctx, int64(count))
}

// RecordFlush records a delivery attempt.
func (m *otelMetrics) RecordFlush(ctx context.Context, size int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.flushes.Add(ctx, 1, attrs)
	m.flushLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.batchSize.Record(ctx, int64(size), attrs)
}
