package eventbatch

import (
	"log/slog"
	"time"

	"github.com/coder/quartz"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch/config"
	"github.com/randalmurphal/eventbatch/pkg/eventbatch/deadletter"
	"github.com/randalmurphal/eventbatch/pkg/eventbatch/errors"
	"github.com/randalmurphal/eventbatch/pkg/eventbatch/observability"
)

// Defaults re-exported from the config package.
const (
	DefaultMaxQueueSize  = config.DefaultMaxQueueSize
	DefaultMaxRetryCount = config.DefaultMaxRetryCount
	DefaultDebounceDelay = config.DefaultDebounceDelay
)

// dispatcherConfig holds configuration for a Dispatcher.
type dispatcherConfig struct {
	debounceDelay  time.Duration
	maxQueueSize   int
	maxRetryCount  int
	rearmOnFailure bool
	backoff        errors.Backoff

	clock      quartz.Clock
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	deadLetter deadletter.Sink
}

// defaultDispatcherConfig returns the default dispatcher configuration.
func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		debounceDelay: DefaultDebounceDelay,
		maxQueueSize:  DefaultMaxQueueSize,
		maxRetryCount: DefaultMaxRetryCount,
		backoff:       errors.DefaultBackoff,
		clock:         quartz.NewReal(),
		logger:        slog.Default(),
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// Option configures a Dispatcher.
type Option func(*dispatcherConfig)

// WithDebounceDelay sets the quiet period after the last submission before
// a flush. Default: 1s
func WithDebounceDelay(d time.Duration) Option {
	return func(c *dispatcherConfig) {
		if d > 0 {
			c.debounceDelay = d
		}
	}
}

// WithMaxQueueSize sets the queue capacity. Default: 1000
func WithMaxQueueSize(n int) Option {
	return func(c *dispatcherConfig) {
		if n > 0 {
			c.maxQueueSize = n
		}
	}
}

// WithMaxRetryCount sets how many failed deliveries an event survives.
// Default: 3
//
// An event whose retry count reaches this value after a failed delivery is
// dropped instead of re-queued.
func WithMaxRetryCount(n int) Option {
	return func(c *dispatcherConfig) {
		if n > 0 {
			c.maxRetryCount = n
		}
	}
}

// WithBackoff sets the delay between attempts after a failed delivery.
// It paces the retries Close makes and, with WithRearmOnFailure, the
// re-armed timer. Default: errors.DefaultBackoff
func WithBackoff(backoff errors.Backoff) Option {
	return func(c *dispatcherConfig) {
		c.backoff = backoff
	}
}

// WithRearmOnFailure schedules a new flush after a failed delivery, delayed
// by backoff. Without it, re-queued events wait for the next RecordEvent.
//
// Example:
//
//	d := eventbatch.New(sink, eventbatch.WithRearmOnFailure(errors.Backoff{
//		Initial: 500 * time.Millisecond,
//		Max:     time.Minute,
//	}))
func WithRearmOnFailure(backoff errors.Backoff) Option {
	return func(c *dispatcherConfig) {
		c.rearmOnFailure = true
		c.backoff = backoff
	}
}

// WithClock replaces the real clock. Tests pass a quartz mock.
func WithClock(clock quartz.Clock) Option {
	return func(c *dispatcherConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *dispatcherConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics via the global MeterProvider.
func WithMetrics() Option {
	return func(c *dispatcherConfig) {
		c.metrics = observability.NewMetricsRecorder()
	}
}

// WithMetricsRecorder sets a custom metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(c *dispatcherConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables an OpenTelemetry span per flush via the global
// TracerProvider.
func WithTracing() Option {
	return func(c *dispatcherConfig) {
		c.spans = observability.NewSpanManager()
	}
}

// WithDeadLetter keeps retry-exhausted events in sink instead of only
// logging them. If sink also implements io.Closer, Close closes it.
func WithDeadLetter(sink deadletter.Sink) Option {
	return func(c *dispatcherConfig) {
		c.deadLetter = sink
	}
}

// WithSettings applies the queue, timing, retry and backoff fields of s.
// Zero values keep the current configuration.
func WithSettings(s config.Settings) Option {
	return func(c *dispatcherConfig) {
		WithDebounceDelay(s.DebounceDelay)(c)
		WithMaxQueueSize(s.MaxQueueSize)(c)
		WithMaxRetryCount(s.MaxRetryCount)(c)
		backoff := errors.Backoff{
			Initial: s.BackoffInitial,
			Max:     s.BackoffMax,
			Factor:  errors.DefaultBackoff.Factor,
			Jitter:  errors.DefaultBackoff.Jitter,
		}
		if s.RearmOnFailure {
			WithRearmOnFailure(backoff)(c)
		} else {
			WithBackoff(backoff)(c)
		}
	}
}
