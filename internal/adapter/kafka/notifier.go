// Package kafka publishes spot lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/curbdata/parking-aggregator/internal/config"
	"github.com/curbdata/parking-aggregator/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Notifier produces spot events to a Kafka topic.
// It implements domain.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured event topic.
func NewNotifier(cfg config.KafkaConfig, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// Publish serializes and writes one spot event. Messages are keyed by spot
// ID so every event for a spot lands on the same partition and consumers
// see per-spot order.
func (n *Notifier) Publish(ctx context.Context, event domain.SpotEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	n.logger.Debug("spot event published", "type", event.Type, "spot_id", event.Spot.ID)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a SpotEvent into a Kafka message.
func serializeToMessage(event domain.SpotEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize spot event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Spot.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
