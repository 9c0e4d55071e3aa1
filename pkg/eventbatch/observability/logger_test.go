package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newJSONLogger returns a debug-level logger writing JSON lines to buf.
func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
	return m
}

func TestLogHelpers(t *testing.T) {
	tests := []struct {
		name   string
		log    func(*slog.Logger)
		level  string
		msg    string
		fields map[string]any
	}{
		{
			name:   "flush start",
			log:    func(l *slog.Logger) { LogFlushStart(l, "b-1", 3) },
			level:  "DEBUG",
			msg:    "flushing event batch",
			fields: map[string]any{"batch_id": "b-1", "batch_size": float64(3)},
		},
		{
			name:   "flush complete",
			log:    func(l *slog.Logger) { LogFlushComplete(l, "b-1", 3, 12.5) },
			level:  "DEBUG",
			msg:    "event batch delivered",
			fields: map[string]any{"batch_id": "b-1", "duration_ms": 12.5},
		},
		{
			name:   "flush error",
			log:    func(l *slog.Logger) { LogFlushError(l, "b-2", 2, errors.New("503"), "transient") },
			level:  "ERROR",
			msg:    "failed to deliver event batch, re-queueing eligible events",
			fields: map[string]any{"batch_id": "b-2", "error": "503", "category": "transient"},
		},
		{
			name:   "eviction",
			log:    func(l *slog.Logger) { LogEviction(l, "page_view", 1000) },
			level:  "WARN",
			msg:    "event queue full, dropping oldest event",
			fields: map[string]any{"event_name": "page_view", "max_queue_size": float64(1000)},
		},
		{
			name:   "retry exhausted",
			log:    func(l *slog.Logger) { LogRetryExhausted(l, "click", 3) },
			level:  "WARN",
			msg:    "dropping event due to max retry count",
			fields: map[string]any{"event_name": "click", "retry_count": float64(3)},
		},
		{
			name:   "duplicate",
			log:    func(l *slog.Logger) { LogDuplicate(l, "click") },
			level:  "DEBUG",
			msg:    "duplicate event discarded",
			fields: map[string]any{"event_name": "click"},
		},
		{
			name:   "rearm",
			log:    func(l *slog.Logger) { LogRearm(l, 2*time.Second, 4) },
			level:  "INFO",
			msg:    "re-arming flush timer after failed delivery",
			fields: map[string]any{"pending": float64(4)},
		},
		{
			name:   "close retry",
			log:    func(l *slog.Logger) { LogCloseRetry(l, 2, time.Second, 3) },
			level:  "WARN",
			msg:    "final flush failed, retrying",
			fields: map[string]any{"attempt": float64(2), "pending": float64(3)},
		},
		{
			name:   "shutdown drop",
			log:    func(l *slog.Logger) { LogShutdownDrop(l, "click", 1) },
			level:  "WARN",
			msg:    "dropping undelivered event at shutdown",
			fields: map[string]any{"event_name": "click", "retry_count": float64(1)},
		},
		{
			name:   "dead letter error",
			log:    func(l *slog.Logger) { LogDeadLetterError(l, "click", errors.New("disk full")) },
			level:  "WARN",
			msg:    "dead-letter write failed",
			fields: map[string]any{"event_name": "click", "error": "disk full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(newJSONLogger(&buf))

			record := lastRecord(t, &buf)
			assert.Equal(t, tt.level, record["level"])
			assert.Equal(t, tt.msg, record["msg"])
			for k, v := range tt.fields {
				assert.Equal(t, v, record[k], "field %s", k)
			}
		})
	}
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogFlushStart(nil, "b", 1)
		LogFlushComplete(nil, "b", 1, 1)
		LogFlushError(nil, "b", 1, errors.New("x"), "transient")
		LogEviction(nil, "e", 1)
		LogRetryExhausted(nil, "e", 3)
		LogDuplicate(nil, "e")
		LogRearm(nil, time.Second, 1)
		LogDeadLetterError(nil, "e", errors.New("x"))
		LogCloseRetry(nil, 1, time.Second, 1)
		LogShutdownDrop(nil, "e", 1)
	})
}
