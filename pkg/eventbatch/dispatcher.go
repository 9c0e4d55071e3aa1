package eventbatch

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch/deadletter"
	eberrors "github.com/randalmurphal/eventbatch/pkg/eventbatch/errors"
	"github.com/randalmurphal/eventbatch/pkg/eventbatch/observability"
)

// Dispatcher coalesces recorded events into batches and hands them to a
// Deliverer once submissions have been quiet for the debounce delay.
//
// A Dispatcher is safe for concurrent use. At most one delivery is in flight
// at a time; events recorded during a delivery start the next cycle.
type Dispatcher struct {
	deliverer Deliverer
	cfg       dispatcherConfig

	mu       sync.Mutex
	queue    *Queue
	timer    *quartz.Timer
	gen      uint64 // incremented on every arm/disarm; stale callbacks compare against it
	flushing bool
	closed   bool
	failures int // consecutive failed deliveries

	// flushMu serializes deliveries. Never acquired while holding mu.
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Dispatcher delivering to deliverer.
//
// Example:
//
//	d := eventbatch.New(sink.NewHTTPSink(url),
//		eventbatch.WithLogger(logger),
//		eventbatch.WithMaxQueueSize(500),
//	)
//	defer d.Close(ctx)
//	d.RecordEvent("page_view", map[string]any{"path": "/"})
func New(deliverer Deliverer, opts ...Option) *Dispatcher {
	if deliverer == nil {
		panic("eventbatch: nil deliverer")
	}

	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		deliverer: deliverer,
		cfg:       cfg,
		queue: NewQueue(QueueConfig{
			MaxSize:       cfg.maxQueueSize,
			MaxRetryCount: cfg.maxRetryCount,
			Logger:        cfg.logger,
			Metrics:       cfg.metrics,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RecordEvent queues an event and restarts the debounce window.
//
// It never blocks on delivery and never reports delivery problems. Events
// with an empty name and events recorded after Close are discarded.
func (d *Dispatcher) RecordEvent(name string, payload map[string]any) {
	if name == "" {
		d.cfg.logger.Warn("discarding event with empty name")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.cfg.logger.Debug("dispatcher closed, discarding event", "event_name", name)
		return
	}

	added := d.queue.Enqueue(NewEvent(name, payload, d.cfg.clock.Now()))
	d.cfg.metrics.RecordEnqueue(d.ctx, !added)
	d.armLocked(d.cfg.debounceDelay)
}

// Flush cancels any pending timer and delivers queued events now.
//
// It returns the delivery error, if any; failed events are reconciled
// exactly as for a timer-driven flush. Flushing an empty queue returns nil.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.disarmLocked()
	d.mu.Unlock()

	return d.flush(ctx)
}

// Close stops accepting events, cancels the pending timer and flushes what
// is queued. A failed final flush is retried, paced by the backoff, until
// the queue is empty, every event has spent its retry budget or ctx ends.
// Events still queued when ctx ends go to the dead-letter sink. If the
// dead-letter sink is an io.Closer it is closed.
//
// Close returns the last delivery error, or nil once everything was
// delivered. It is idempotent; later calls return nil.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.disarmLocked()
	d.mu.Unlock()

	err := d.drain(ctx)
	d.cancel()

	if c, ok := d.cfg.deadLetter.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close dead-letter sink: %w", cerr)
		}
	}
	return err
}

// State reports where the dispatcher is in its debounce cycle.
// A delivery in flight takes precedence over an armed timer.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.flushing:
		return StateFlushing
	case d.timer != nil:
		return StatePending
	default:
		return StateIdle
	}
}

// Len returns the number of queued events.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}

// Snapshot returns a copy of the queued events in flush order.
func (d *Dispatcher) Snapshot() []QueuedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Snapshot()
}

// armLocked cancels any pending timer and schedules a flush after delay.
// Caller must hold mu.
func (d *Dispatcher) armLocked(delay time.Duration) {
	d.disarmLocked()
	gen := d.gen
	d.timer = d.cfg.clock.AfterFunc(delay, func() {
		d.onTimer(gen)
	}, "eventbatch", "debounce")
}

// disarmLocked cancels the pending timer, if any. Caller must hold mu.
func (d *Dispatcher) disarmLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop("eventbatch", "debounce")
		d.timer = nil
	}
}

func (d *Dispatcher) onTimer(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.closed {
		// Superseded by a later arm, a Flush or Close.
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	_ = d.flush(d.ctx)
}

// flush drains the queue and delivers it as one batch.
func (d *Dispatcher) flush(ctx context.Context) error {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	items := d.queue.DrainAll()
	if len(items) == 0 {
		d.mu.Unlock()
		return nil
	}
	d.flushing = true
	d.mu.Unlock()

	batch := newBatch(items, d.cfg.clock.Now())
	size := batch.Len()

	ctx, span := d.cfg.spans.StartFlushSpan(ctx, batch.ID, size)
	observability.LogFlushStart(d.cfg.logger, batch.ID, size)

	start := d.cfg.clock.Now()
	err := d.deliver(ctx, batch)
	elapsed := d.cfg.clock.Since(start)

	d.cfg.metrics.RecordFlush(ctx, size, elapsed, err)
	defer d.cfg.spans.EndSpanWithError(span, err)

	if err == nil {
		d.mu.Lock()
		d.flushing = false
		d.failures = 0
		d.mu.Unlock()

		observability.LogFlushComplete(d.cfg.logger, batch.ID, size, float64(elapsed.Microseconds())/1000)
		return nil
	}

	observability.LogFlushError(d.cfg.logger, batch.ID, size, err, eberrors.Categorize(err).String())

	d.mu.Lock()
	for _, qe := range items {
		qe.RetryCount++
	}
	requeued, dropped := d.queue.RequeueFront(items)
	d.cfg.metrics.RecordRequeue(ctx, len(requeued))
	d.flushing = false
	d.failures++
	if d.cfg.rearmOnFailure && !d.closed && d.timer == nil && d.queue.Len() > 0 {
		delay := d.cfg.backoff.Delay(d.failures)
		d.armLocked(delay)
		observability.LogRearm(d.cfg.logger, delay, d.queue.Len())
	}
	d.mu.Unlock()

	d.cfg.spans.AddSpanEvent(ctx, "events.reconciled",
		attribute.Int("requeued", len(requeued)),
		attribute.Int("dropped", len(dropped)),
	)
	d.deadLetter(context.WithoutCancel(ctx), batch.ID, dropped, err)
	return err
}

// drain flushes until the queue is empty or ctx ends. The retry bound
// guarantees termination: every failed attempt spends one retry of each
// queued event.
func (d *Dispatcher) drain(ctx context.Context) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = d.flush(ctx)
		pending := d.Len()
		if err == nil || pending == 0 {
			return err
		}
		if ctx.Err() != nil {
			break
		}

		delay := d.cfg.backoff.Delay(attempt)
		observability.LogCloseRetry(d.cfg.logger, attempt, delay, pending)
		if !d.sleep(ctx, delay) {
			break
		}
	}

	d.abandon(ctx, err)
	return err
}

// sleep waits for delay on the dispatcher clock. It reports false if ctx
// ended first.
func (d *Dispatcher) sleep(ctx context.Context, delay time.Duration) bool {
	t := d.cfg.clock.NewTimer(delay, "eventbatch", "close")
	defer t.Stop("eventbatch", "close")

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// abandon drops whatever is still queued at shutdown, handing it to the
// dead-letter sink when one is configured.
func (d *Dispatcher) abandon(ctx context.Context, cause error) {
	d.mu.Lock()
	left := d.queue.DrainAll()
	d.mu.Unlock()
	if len(left) == 0 {
		return
	}

	for _, qe := range left {
		observability.LogShutdownDrop(d.cfg.logger, qe.Event.Name, qe.RetryCount)
		d.cfg.metrics.RecordDrop(ctx, observability.ReasonShutdown)
	}
	if cause == nil {
		cause = ctx.Err()
	}
	d.deadLetter(context.WithoutCancel(ctx), "", left, cause)
}

// deliver calls the Deliverer, converting a panic into an error so a
// misbehaving sink cannot take down the timer goroutine.
func (d *Dispatcher) deliver(ctx context.Context, batch *Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.cfg.logger.Error("deliverer panicked",
				"batch_id", batch.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("deliverer panic: %v", r)
		}
	}()
	return d.deliverer.Deliver(ctx, batch)
}

func (d *Dispatcher) deadLetter(ctx context.Context, batchID string, dropped []*QueuedEvent, cause error) {
	if d.cfg.deadLetter == nil || len(dropped) == 0 {
		return
	}

	now := d.cfg.clock.Now()
	for _, qe := range dropped {
		rec := &deadletter.Record{
			ID:         uuid.NewString(),
			BatchID:    batchID,
			EventName:  qe.Event.Name,
			Payload:    qe.Event.Payload,
			Timestamp:  qe.Event.Timestamp,
			RetryCount: qe.RetryCount,
			LastError:  cause.Error(),
			DeadAt:     now,
		}
		if err := d.cfg.deadLetter.Put(ctx, rec); err != nil {
			observability.LogDeadLetterError(d.cfg.logger, qe.Event.Name, err)
		}
	}
}
