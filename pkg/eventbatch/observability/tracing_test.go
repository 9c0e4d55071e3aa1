package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs a tracer provider with an in-memory exporter.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func TestStartFlushSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartFlushSpan(context.Background(), "batch-1", 3)
	sm.AddSpanEvent(ctx, "requeue", attribute.Int("count", 2))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	s := spans[0]
	assert.Equal(t, "eventbatch.flush", s.Name)
	assert.Equal(t, codes.Ok, s.Status.Code)
	assert.Contains(t, s.Attributes, attribute.String("batch.id", "batch-1"))
	assert.Contains(t, s.Attributes, attribute.Int("batch.size", 3))
	require.Len(t, s.Events, 1)
	assert.Equal(t, "requeue", s.Events[0].Name)
}

func TestEndSpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	_, span := sm.StartFlushSpan(context.Background(), "batch-2", 1)
	sm.EndSpanWithError(span, errors.New("collector down"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "collector down", spans[0].Status.Description)

	assert.NotPanics(t, func() { sm.EndSpanWithError(nil, nil) })
}

func TestAddSpanEvent_NoSpan(t *testing.T) {
	sm := NewSpanManager()
	assert.NotPanics(t, func() {
		sm.AddSpanEvent(context.Background(), "orphan")
	})
}

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()

	var m MetricsRecorder = NoopMetrics{}
	m.RecordEnqueue(ctx, true)
	m.RecordDrop(ctx, ReasonOverflow)
	m.RecordRequeue(ctx, 1)
	m.RecordFlush(ctx, 1, 0, nil)

	var sm SpanManager = NoopSpanManager{}
	gotCtx, span := sm.StartFlushSpan(ctx, "b", 1)
	assert.Equal(t, ctx, gotCtx)
	assert.False(t, span.IsRecording())
	sm.AddSpanEvent(ctx, "x")
	sm.EndSpanWithError(span, errors.New("ignored"))
}
