package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch"
	"github.com/randalmurphal/eventbatch/pkg/eventbatch/config"
	"github.com/randalmurphal/eventbatch/pkg/eventbatch/deadletter"
	eberrors "github.com/randalmurphal/eventbatch/pkg/eventbatch/errors"
	"github.com/randalmurphal/eventbatch/pkg/eventbatch/sink"
)

var (
	replaySink     string
	replayURL      string
	replayDebounce time.Duration
	replayMetrics  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Record newline-delimited JSON events and deliver them in batches",
	Long: `Replay reads one JSON object per line from file, or stdin when no file
is given, and records each as an event:

  {"name": "signup", "payload": {"plan": "pro"}}

Events are batched exactly as a long-running producer would batch them.
On end of input the remaining queue is flushed and the command exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(configPath, os.LookupEnv)
		if err != nil {
			return err
		}
		if replaySink != "" {
			settings.Sink.Type = strings.ToLower(replaySink)
		}
		if replayURL != "" {
			settings.Sink.URL = replayURL
		}
		if replayDebounce > 0 {
			settings.DebounceDelay = replayDebounce
		}
		if err := settings.Validate(); err != nil {
			return err
		}

		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()
			in = f
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var (
			opts   []eventbatch.Option
			reader *sdkmetric.ManualReader
		)
		if replayMetrics {
			reader = installMeterProvider()
			opts = append(opts, eventbatch.WithMetrics())
		}

		stats, err := replay(ctx, settings, in, slog.Default(), opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recorded %d events (%d skipped lines)\n", stats.recorded, stats.skipped)
		if reader != nil {
			return printMetrics(context.WithoutCancel(ctx), cmd.OutOrStdout(), reader)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replaySink, "sink", "", "sink type override: log, http, kafka, sqlite")
	replayCmd.Flags().StringVar(&replayURL, "url", "", "collector URL for the http sink")
	replayCmd.Flags().DurationVar(&replayDebounce, "debounce", 0, "debounce delay override")
	replayCmd.Flags().BoolVar(&replayMetrics, "metrics", false, "print OpenTelemetry metric totals when done")
	rootCmd.AddCommand(replayCmd)
}

// inputEvent is one line of replay input.
type inputEvent struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

type replayStats struct {
	recorded int
	skipped  int
}

// replay records every event read from r on a dispatcher built from
// settings, then closes the dispatcher to flush what is left.
func replay(ctx context.Context, settings config.Settings, r io.Reader, logger *slog.Logger, opts ...eventbatch.Option) (replayStats, error) {
	var stats replayStats

	deliverer, closeSink, err := buildDeliverer(settings.Sink, logger)
	if err != nil {
		return stats, err
	}
	defer closeSink()

	opts = append([]eventbatch.Option{
		eventbatch.WithSettings(settings),
		eventbatch.WithLogger(logger),
	}, opts...)
	if settings.DeadLetterPath != "" {
		store, err := deadletter.NewSQLiteStore(settings.DeadLetterPath)
		if err != nil {
			return stats, fmt.Errorf("open dead-letter store: %w", err)
		}
		// Closed by the dispatcher.
		opts = append(opts, eventbatch.WithDeadLetter(store))
	}

	d := eventbatch.New(deliverer, opts...)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() && ctx.Err() == nil {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var evt inputEvent
		if err := json.Unmarshal([]byte(text), &evt); err != nil || evt.Name == "" {
			logger.Warn("skipping invalid input line", "line", line, "error", err)
			stats.skipped++
			continue
		}
		d.RecordEvent(evt.Name, evt.Payload)
		stats.recorded++
	}
	scanErr := scanner.Err()

	// Use a fresh context so an interrupt still gets a final flush attempt.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout(settings))
	defer cancel()
	if err := d.Close(closeCtx); err != nil {
		logger.Error("final flush failed", "error", err, "pending", d.Len())
	}

	if scanErr != nil {
		return stats, fmt.Errorf("read input: %w", scanErr)
	}
	return stats, nil
}

// closeTimeout bounds the final flush: one sink timeout per attempt plus
// the backoff between attempts, with room for jitter.
func closeTimeout(s config.Settings) time.Duration {
	backoff := eberrors.Backoff{Initial: s.BackoffInitial, Max: s.BackoffMax}
	total := s.DebounceDelay
	for attempt := 1; attempt <= s.MaxRetryCount; attempt++ {
		delay := backoff.Delay(attempt)
		total += s.Sink.Timeout + delay + delay/5
	}
	return total
}

// buildDeliverer creates the configured sink and a function releasing it.
func buildDeliverer(s config.SinkSettings, logger *slog.Logger) (eventbatch.Deliverer, func() error, error) {
	noop := func() error { return nil }

	switch s.Type {
	case config.SinkLog, "":
		return sink.NewLogSink(logger), noop, nil
	case config.SinkHTTP:
		return sink.NewHTTPSink(s.URL, sink.WithHTTPTimeout(s.Timeout)), noop, nil
	case config.SinkKafka:
		k := sink.NewKafkaSink(s.Brokers, s.Topic)
		return k, k.Close, nil
	case config.SinkSQLite:
		db, err := sink.NewSQLiteSink(s.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink type %q", s.Type)
	}
}
