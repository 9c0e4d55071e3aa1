// Package sink provides Deliverer implementations for common destinations.
//
// Every sink treats a batch as a unit: it is written in full or the call
// returns an error and the dispatcher re-queues the events. Errors are
// categorized with package errors so callers can tell transient failures
// from permanent ones.
//
//	d := eventbatch.New(sink.NewHTTPSink("https://collector.example/events",
//		sink.WithHTTPTimeout(3*time.Second),
//	))
package sink
