package sink

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch"
)

// LogSink logs every batch and always succeeds. It is the default sink of
// the command-line tool and a stand-in collector during development.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink logging at Info level. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: slog.LevelInfo}
}

// Deliver implements eventbatch.Deliverer.
func (s *LogSink) Deliver(ctx context.Context, batch *eventbatch.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return eventbatch.ErrEmptyBatch
	}

	names := make([]string, batch.Len())
	for i, evt := range batch.Events {
		names[i] = evt.Name
	}
	s.logger.Log(ctx, s.level, "received event batch",
		slog.String("batch_id", batch.ID),
		slog.Int("batch_size", batch.Len()),
		slog.Any("events", names),
	)
	for _, evt := range batch.Events {
		s.logger.Log(ctx, slog.LevelDebug, "event",
			slog.String("batch_id", batch.ID),
			slog.String("event_name", evt.Name),
			slog.Any("payload", evt.Payload),
			slog.Time("timestamp", evt.Timestamp),
		)
	}
	return nil
}
