/*
Package eventbatch coalesces bursts of analytics events into bounded,
deduplicated batches and delivers them with bounded retry.

# Overview

Callers record events fire-and-forget. A Dispatcher queues them and waits
for a quiet period (the debounce delay, default 1s) before draining the
whole queue into one Batch and handing it to a Deliverer. Every new event
restarts the wait, so continuous activity defers the flush.

	d := eventbatch.New(sink.NewHTTPSink("https://collector.example/events"))
	defer d.Close(ctx)

	d.RecordEvent("signup", map[string]any{"plan": "pro"})
	d.RecordEvent("page_view", map[string]any{"path": "/billing"})
	// one batch with both events is delivered ~1s later

# Queue Rules

The queue holds at most MaxQueueSize events (default 1000). When full, the
oldest event is evicted with a warning. An event whose name and payload equal
one already queued is discarded; timestamps are ignored for this comparison.

# Failure Handling

If delivery fails, every event in the batch has its retry count incremented
and is put back at the front of the queue, ahead of anything recorded since.
Events that reach MaxRetryCount (default 3) are dropped with a warning, or
handed to a dead-letter sink when one is configured:

	store, _ := deadletter.NewSQLiteStore("./dead.db")
	d := eventbatch.New(deliverer, eventbatch.WithDeadLetter(store))

By default a failed batch waits for the next RecordEvent before it is tried
again. WithRearmOnFailure schedules the retry on its own with exponential
backoff:

	d := eventbatch.New(deliverer, eventbatch.WithRearmOnFailure(errors.DefaultBackoff))

Close keeps retrying a failed final flush on the same backoff until the
queue is empty or its context ends; whatever is left then goes to the
dead-letter sink.

# Delivery

A Deliverer receives the batch and reports success or failure for the batch
as a whole. The sink package provides HTTP, Kafka, SQLite and log sinks.
Delivery errors never reach RecordEvent callers; Flush returns them for
callers that want a synchronous result.

# Observability

WithLogger, WithMetrics and WithTracing wire slog and OpenTelemetry. See
package observability for metric and span names.
*/
package eventbatch
