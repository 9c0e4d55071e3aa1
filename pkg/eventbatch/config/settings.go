package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Queue and dispatcher defaults.
const (
	DefaultMaxQueueSize  = 1000
	DefaultMaxRetryCount = 3
	DefaultDebounceDelay = 1000 * time.Millisecond
)

// Sink types recognized by SinkSettings.Type.
const (
	SinkLog    = "log"
	SinkHTTP   = "http"
	SinkKafka  = "kafka"
	SinkSQLite = "sqlite"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EVENTBATCH_"

// Settings is the typed dispatcher configuration.
type Settings struct {
	MaxQueueSize   int
	MaxRetryCount  int
	DebounceDelay  time.Duration
	RearmOnFailure bool
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	Sink           SinkSettings
	DeadLetterPath string
}

// SinkSettings selects and configures the delivery collaborator.
type SinkSettings struct {
	Type    string
	URL     string
	Timeout time.Duration
	Brokers []string
	Topic   string
	Path    string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxQueueSize:  DefaultMaxQueueSize,
		MaxRetryCount: DefaultMaxRetryCount,
		DebounceDelay: DefaultDebounceDelay,
		Sink: SinkSettings{
			Type:    SinkLog,
			Timeout: 5 * time.Second,
		},
	}
}

// LoadSettings extracts Settings from c, falling back to DefaultSettings
// for anything missing.
//
//	max_queue_size: 1000
//	max_retry_count: 3
//	debounce_delay: 1s
//	rearm_on_failure: true
//	backoff: {initial: 1s, max: 30s}
//	sink: {type: http, url: "https://collector/events", timeout: 5s}
//	dead_letter: {path: ./dead.db}
func LoadSettings(c Config) Settings {
	s := DefaultSettings()

	s.MaxQueueSize = c.Int("max_queue_size", s.MaxQueueSize)
	s.MaxRetryCount = c.Int("max_retry_count", s.MaxRetryCount)
	s.DebounceDelay = c.Duration("debounce_delay", s.DebounceDelay)
	s.RearmOnFailure = c.Bool("rearm_on_failure", s.RearmOnFailure)

	backoff := c.Section("backoff")
	s.BackoffInitial = backoff.Duration("initial", s.BackoffInitial)
	s.BackoffMax = backoff.Duration("max", s.BackoffMax)

	sink := c.Section("sink")
	s.Sink.Type = strings.ToLower(sink.String("type", s.Sink.Type))
	s.Sink.URL = sink.String("url", s.Sink.URL)
	s.Sink.Timeout = sink.Duration("timeout", s.Sink.Timeout)
	s.Sink.Brokers = sink.StringSlice("brokers", s.Sink.Brokers)
	s.Sink.Topic = sink.String("topic", s.Sink.Topic)
	s.Sink.Path = sink.String("path", s.Sink.Path)

	s.DeadLetterPath = c.Section("dead_letter").String("path", s.DeadLetterPath)

	return s
}

// ApplyEnv overrides s with EVENTBATCH_* variables resolved through lookup
// (os.LookupEnv in production).
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"MAX_QUEUE_SIZE":  &s.MaxQueueSize,
		"MAX_RETRY_COUNT": &s.MaxRetryCount,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"DEBOUNCE_DELAY":  &s.DebounceDelay,
		"BACKOFF_INITIAL": &s.BackoffInitial,
		"BACKOFF_MAX":     &s.BackoffMax,
		"SINK_TIMEOUT":    &s.Sink.Timeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup(EnvPrefix + "REARM_ON_FAILURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sREARM_ON_FAILURE: %w", EnvPrefix, err)
		}
		s.RearmOnFailure = b
	}

	strs := map[string]*string{
		"SINK_URL":         &s.Sink.URL,
		"SINK_TOPIC":       &s.Sink.Topic,
		"SINK_PATH":        &s.Sink.Path,
		"DEAD_LETTER_PATH": &s.DeadLetterPath,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPrefix + "SINK_TYPE"); ok {
		s.Sink.Type = strings.ToLower(v)
	}
	if v, ok := lookup(EnvPrefix + "SINK_BROKERS"); ok {
		s.Sink.Brokers = splitList(v)
	}

	return nil
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	if s.MaxQueueSize <= 0 {
		return fmt.Errorf("max_queue_size must be positive, got %d", s.MaxQueueSize)
	}
	if s.MaxRetryCount <= 0 {
		return fmt.Errorf("max_retry_count must be positive, got %d", s.MaxRetryCount)
	}
	if s.DebounceDelay <= 0 {
		return fmt.Errorf("debounce_delay must be positive, got %s", s.DebounceDelay)
	}

	switch s.Sink.Type {
	case SinkLog:
	case SinkHTTP:
		if s.Sink.URL == "" {
			return fmt.Errorf("sink.url is required for %s sink", SinkHTTP)
		}
	case SinkKafka:
		if len(s.Sink.Brokers) == 0 || s.Sink.Topic == "" {
			return fmt.Errorf("sink.brokers and sink.topic are required for %s sink", SinkKafka)
		}
	case SinkSQLite:
		if s.Sink.Path == "" {
			return fmt.Errorf("sink.path is required for %s sink", SinkSQLite)
		}
	default:
		return fmt.Errorf("unknown sink type %q", s.Sink.Type)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
