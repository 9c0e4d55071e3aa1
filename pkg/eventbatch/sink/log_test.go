package sink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch"
)

// TestLogSink_Deliver tests the batch summary and per-event records.
func TestLogSink_Deliver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	require.NoError(t, NewLogSink(logger).Deliver(context.Background(), testBatch()))

	out := buf.String()
	assert.Contains(t, out, `msg="received event batch"`)
	assert.Contains(t, out, "batch_id=batch-1")
	assert.Contains(t, out, "batch_size=2")
	assert.Contains(t, out, "event_name=signup")
	assert.Contains(t, out, "event_name=page_view")
}

// TestLogSink_EmptyBatch tests empty batches are rejected.
func TestLogSink_EmptyBatch(t *testing.T) {
	assert.ErrorIs(t, NewLogSink(nil).Deliver(context.Background(), &eventbatch.Batch{}), eventbatch.ErrEmptyBatch)
}

// TestSinks_ImplementDeliverer tests every sink satisfies the interface.
func TestSinks_ImplementDeliverer(t *testing.T) {
	var _ eventbatch.Deliverer = (*HTTPSink)(nil)
	var _ eventbatch.Deliverer = (*KafkaSink)(nil)
	var _ eventbatch.Deliverer = (*SQLiteSink)(nil)
	var _ eventbatch.Deliverer = (*LogSink)(nil)
}
