// Package observability provides logging, metrics, and tracing for the
// event batching dispatcher.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Metrics and tracing are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// LogFlushStart logs the start of a batch delivery.
func LogFlushStart(logger *slog.Logger, batchID string, size int) {
	if logger == nil {
		return
	}
	logger.Debug("flushing event batch",
		slog.String("batch_id", batchID),
		slog.Int("batch_size", size),
	)
}

// LogFlushComplete logs a successful batch delivery.
func LogFlushComplete(logger *slog.Logger, batchID string, size int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event batch delivered",
		slog.String("batch_id", batchID),
		slog.Int("batch_size", size),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFlushError logs a failed batch delivery. The batch is re-queued
// subject to each event's retry budget.
func LogFlushError(logger *slog.Logger, batchID string, size int, err error, category string) {
	if logger == nil {
		return
	}
	logger.Error("failed to deliver event batch, re-queueing eligible events",
		slog.String("batch_id", batchID),
		slog.Int("batch_size", size),
		slog.String("error", err.Error()),
		slog.String("category", category),
	)
}

// LogEviction logs an event dropped because the queue was full.
func LogEviction(logger *slog.Logger, eventName string, maxSize int) {
	if logger == nil {
		return
	}
	logger.Warn("event queue full, dropping oldest event",
		slog.String("event_name", eventName),
		slog.Int("max_queue_size", maxSize),
	)
}

// LogRetryExhausted logs an event dropped after exceeding its retry budget.
func LogRetryExhausted(logger *slog.Logger, eventName string, retryCount int) {
	if logger == nil {
		return
	}
	logger.Warn("dropping event due to max retry count",
		slog.String("event_name", eventName),
		slog.Int("retry_count", retryCount),
	)
}

// LogDuplicate logs a submission discarded as a duplicate.
func LogDuplicate(logger *slog.Logger, eventName string) {
	if logger == nil {
		return
	}
	logger.Debug("duplicate event discarded",
		slog.String("event_name", eventName),
	)
}

// LogRearm logs a timer re-armed after a failed delivery.
func LogRearm(logger *slog.Logger, delay time.Duration, pending int) {
	if logger == nil {
		return
	}
	logger.Info("re-arming flush timer after failed delivery",
		slog.Duration("delay", delay),
		slog.Int("pending", pending),
	)
}

// LogCloseRetry logs a failed final flush that will be tried again.
func LogCloseRetry(logger *slog.Logger, attempt int, delay time.Duration, pending int) {
	if logger == nil {
		return
	}
	logger.Warn("final flush failed, retrying",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
		slog.Int("pending", pending),
	)
}

// LogShutdownDrop logs an event still undelivered when Close gave up.
func LogShutdownDrop(logger *slog.Logger, eventName string, retryCount int) {
	if logger == nil {
		return
	}
	logger.Warn("dropping undelivered event at shutdown",
		slog.String("event_name", eventName),
		slog.Int("retry_count", retryCount),
	)
}

// LogDeadLetterError logs a failure to hand an exhausted event to the
// dead-letter sink (non-fatal).
func LogDeadLetterError(logger *slog.Logger, eventName string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("dead-letter write failed",
		slog.String("event_name", eventName),
		slog.String("error", err.Error()),
	)
}
