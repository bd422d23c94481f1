// Package consumer listens for index invalidation events on Kafka so that
// every searcher instance drops its snapshot when the shared corpus changes.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
)

// InvalidateEvent announces that the corpus changed.
type InvalidateEvent struct {
	Reason    string    `json:"reason"`
	Origin    string    `json:"origin,omitempty"`
	Documents []string  `json:"documents,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Invalidator drops the current snapshot. trigger names what asked for it.
type Invalidator interface {
	Invalidate(ctx context.Context, trigger string)
}

// Trigger is the trigger name passed to the Invalidator.
const Trigger = "kafka"

// InvalidateConsumer wraps a Kafka consumer reading invalidation events.
type InvalidateConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an InvalidateConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *InvalidateConsumer {
	return &InvalidateConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "invalidate-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *InvalidateConsumer) Start(ctx context.Context) error {
	ic.logger.Info("invalidate consumer starting", "topic", ic.consumer.Topic())
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that invalidates on every event.
// An empty value counts as a bare invalidation; undecodable values are
// logged and committed so they are not redelivered forever.
func HandleMessage(inv Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "invalidate-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		var event InvalidateEvent
		if len(value) > 0 {
			decoded, err := kafka.DecodeJSON[InvalidateEvent](value)
			if err != nil {
				logger.Error("failed to decode invalidate event",
					"error", err,
					"key", string(key),
				)
				return nil
			}
			event = decoded
		}
		logger.Info("invalidating index",
			"reason", event.Reason,
			"origin", event.Origin,
			"documents", len(event.Documents),
		)
		inv.Invalidate(ctx, Trigger)
		return nil
	}
}
