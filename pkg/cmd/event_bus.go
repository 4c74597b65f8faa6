package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/trigonhq/trigon/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider.
// The GoChannel bus is in-process only and meant for single-node setups.
func NewEventBus(provider, kafkaBrokers, consumerGroup string, logger *slog.Logger) *eventbus.WatermillEventBus {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		bus, err := eventbus.NewKafkaBus(strings.Split(kafkaBrokers, ","), consumerGroup, wmLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka event bus: %w", err))
		}

		return bus
	case "gochannel", "":
		return eventbus.NewGoChannelBus(wmLogger)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
