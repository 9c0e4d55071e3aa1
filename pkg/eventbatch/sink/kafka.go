package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch"
	eberrors "github.com/randalmurphal/eventbatch/pkg/eventbatch/errors"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each batch as one Kafka message keyed by batch ID.
// The value is the same JSON document HTTPSink posts.
type KafkaSink struct {
	writer MessageWriter
}

// NewKafkaSink creates a sink writing to topic on the given brokers.
// Writes wait for all in-sync replicas.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return NewKafkaSinkWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.LeastBytes{},
	})
}

// NewKafkaSinkWithWriter creates a sink around an existing writer.
func NewKafkaSinkWithWriter(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

// Deliver implements eventbatch.Deliverer.
func (k *KafkaSink) Deliver(ctx context.Context, batch *eventbatch.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return eventbatch.ErrEmptyBatch
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return eberrors.Permanent(fmt.Errorf("encode batch: %w", err), "kafka sink")
	}

	msg := kafka.Message{
		Key:   []byte(batch.ID),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_count", Value: []byte(fmt.Sprint(batch.Len()))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		if errorIsPermanent(err) {
			return eberrors.Permanent(err, "kafka sink")
		}
		return fmt.Errorf("write batch %s: %w", batch.ID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

// errorIsPermanent reports Kafka errors that no retry will fix.
func errorIsPermanent(err error) bool {
	var tooLarge kafka.MessageTooLargeError
	if errors.As(err, &tooLarge) {
		return true
	}
	var kerr kafka.Error
	if !errors.As(err, &kerr) {
		return false
	}
	return !kerr.Temporary()
}
