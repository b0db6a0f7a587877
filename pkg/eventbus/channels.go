package eventbus

import (
	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannelEventBus builds an in-process bus. Used for single-binary
// deployments and tests.
func NewGoChannelEventBus(logger watermill.LoggerAdapter) EventBus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)

	return NewWatermillEventBus(pubSub, pubSub)
}

// NewKafkaEventBus builds a kafka-backed bus for multi-instance deployments.
func NewKafkaEventBus(brokers []string, consumerGroup string, logger watermill.LoggerAdapter) (EventBus, error) {
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
