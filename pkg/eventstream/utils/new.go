// Package streamutils is the eventstream utility package
package streamutils

import (
	"fmt"
	"log/slog"

	"github.com/nickyai/memex/pkg/eventstream"
	"github.com/nickyai/memex/pkg/eventstream/kafka"
	"github.com/nickyai/memex/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	Provider string
	Brokers  []string
	Topic    string
}

// NewPublisher constructs a fact event publisher for the configured
// provider. The "none" provider returns the no-op publisher.
func NewPublisher(o NewPublisherOpts, logger *slog.Logger) (eventstream.Publisher, error) {
	switch o.Provider {
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		}, logger)
	case "none", "":
		return nop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unsupported stream provider: %s", o.Provider)
	}
}
