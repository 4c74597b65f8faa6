package eventbus

import (
	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannelBus creates an in-process bus for single-binary deployments
// and tests.
func NewGoChannelBus(logger watermill.LoggerAdapter) *WatermillEventBus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)

	return NewWatermillEventBus(pubSub, pubSub)
}

// NewKafkaBus creates a Kafka-backed bus. Consumers share the given group
// so activation events are processed once across engine replicas.
func NewKafkaBus(brokers []string, consumerGroup string, logger watermill.LoggerAdapter) (*WatermillEventBus, error) {
	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         consumerGroup,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPublisherConfig,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return NewWatermillEventBus(publisher, subscriber), nil
}
