package eventbatch

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	// ErrClosed is returned by Flush after Close.
	ErrClosed = errors.New("eventbatch: dispatcher closed")

	// ErrEmptyBatch is returned by sinks handed a batch with no events.
	ErrEmptyBatch = errors.New("eventbatch: empty batch")
)

// Deliverer sends a batch to its destination.
//
// A non-nil error means the whole batch is undelivered; the dispatcher
// assumes neither idempotency nor partial success. Implementations own
// their own timeouts.
type Deliverer interface {
	Deliver(ctx context.Context, batch *Batch) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, batch *Batch) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, batch *Batch) error {
	return f(ctx, batch)
}
