// Package kafka publishes fact events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nickyai/memex/pkg/eventstream"
)

// Publisher writes fact events to a Kafka topic keyed by fact ID, so all
// events for one fact land on the same partition in order.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic fact events are written to.
	Topic string
}

// NewPublisher creates a Kafka-backed fact event publisher. The writer
// dials lazily on first publish.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka publisher initialized", "brokers", c.Brokers, "topic", c.Topic)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// Publish writes one fact event.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.FactEvent) error {
	if event == nil {
		return eventstream.ErrNilFactEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling fact event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.FactID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing fact event: %w", err)
	}

	p.logger.Debug("published fact event", "type", event.EventType, "fact_id", event.FactID)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Ensure Publisher implements eventstream.Publisher
var _ eventstream.Publisher = (*Publisher)(nil)
