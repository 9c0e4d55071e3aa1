package config_test

import (
	"testing"
	"time"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultSettings(t *testing.T) {
	s := config.DefaultSettings()

	assert.Equal(t, 1000, s.MaxQueueSize)
	assert.Equal(t, 3, s.MaxRetryCount)
	assert.Equal(t, time.Second, s.DebounceDelay)
	assert.False(t, s.RearmOnFailure)
	assert.Equal(t, config.SinkLog, s.Sink.Type)
	require.NoError(t, s.Validate())
}

func TestLoadSettings(t *testing.T) {
	cfg, err := config.Parse([]byte(`
max_queue_size: 200
max_retry_count: 5
debounce_delay: 500
rearm_on_failure: true
backoff:
  initial: 2s
  max: 1m
sink:
  type: KAFKA
  brokers: [b1:9092, b2:9092]
  topic: analytics
dead_letter:
  path: /tmp/dead.db
`), config.FormatYAML)
	require.NoError(t, err)

	s := config.LoadSettings(cfg)

	assert.Equal(t, 200, s.MaxQueueSize)
	assert.Equal(t, 5, s.MaxRetryCount)
	assert.Equal(t, 500*time.Millisecond, s.DebounceDelay)
	assert.True(t, s.RearmOnFailure)
	assert.Equal(t, 2*time.Second, s.BackoffInitial)
	assert.Equal(t, time.Minute, s.BackoffMax)
	assert.Equal(t, config.SinkKafka, s.Sink.Type)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, s.Sink.Brokers)
	assert.Equal(t, "analytics", s.Sink.Topic)
	assert.Equal(t, 5*time.Second, s.Sink.Timeout)
	assert.Equal(t, "/tmp/dead.db", s.DeadLetterPath)
	require.NoError(t, s.Validate())
}

func TestApplyEnv(t *testing.T) {
	s := config.DefaultSettings()

	err := s.ApplyEnv(envMap(map[string]string{
		"EVENTBATCH_MAX_QUEUE_SIZE":   "10",
		"EVENTBATCH_DEBOUNCE_DELAY":   "150ms",
		"EVENTBATCH_REARM_ON_FAILURE": "true",
		"EVENTBATCH_SINK_TYPE":        "HTTP",
		"EVENTBATCH_SINK_URL":         "http://collector/events",
		"EVENTBATCH_SINK_BROKERS":     " a:1 , ,b:2",
	}))
	require.NoError(t, err)

	assert.Equal(t, 10, s.MaxQueueSize)
	assert.Equal(t, 3, s.MaxRetryCount)
	assert.Equal(t, 150*time.Millisecond, s.DebounceDelay)
	assert.True(t, s.RearmOnFailure)
	assert.Equal(t, config.SinkHTTP, s.Sink.Type)
	assert.Equal(t, "http://collector/events", s.Sink.URL)
	assert.Equal(t, []string{"a:1", "b:2"}, s.Sink.Brokers)
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad int", map[string]string{"EVENTBATCH_MAX_RETRY_COUNT": "three"}},
		{"bad duration", map[string]string{"EVENTBATCH_DEBOUNCE_DELAY": "1000"}},
		{"bad bool", map[string]string{"EVENTBATCH_REARM_ON_FAILURE": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.DefaultSettings()
			assert.Error(t, s.ApplyEnv(envMap(tt.env)))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Settings)
		errMsg string
	}{
		{"zero queue", func(s *config.Settings) { s.MaxQueueSize = 0 }, "max_queue_size"},
		{"zero retry", func(s *config.Settings) { s.MaxRetryCount = 0 }, "max_retry_count"},
		{"zero delay", func(s *config.Settings) { s.DebounceDelay = 0 }, "debounce_delay"},
		{"http without url", func(s *config.Settings) { s.Sink.Type = config.SinkHTTP }, "sink.url"},
		{"kafka without topic", func(s *config.Settings) {
			s.Sink.Type = config.SinkKafka
			s.Sink.Brokers = []string{"b:9092"}
		}, "sink.topic"},
		{"sqlite without path", func(s *config.Settings) { s.Sink.Type = config.SinkSQLite }, "sink.path"},
		{"unknown sink", func(s *config.Settings) { s.Sink.Type = "carrier-pigeon" }, "unknown sink type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
