package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dealflow/dealflow/pkg/eventbus"
)

// NewEventBus creates the lifecycle event bus. Kafka is used for
// multi-process deployments, the in-memory gochannel bus for single
// binaries and tests.
func NewEventBus(provider string, brokers []string, consumerGroup string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		return eventbus.NewKafkaEventBus(brokers, consumerGroup, wmLogger)
	case "memory", "gochannel":
		return eventbus.NewGoChannelEventBus(wmLogger), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
