package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/events"
)

const (
	EventProducerInstanceName = "event_producer_instance"
	inMemoryBrokerBufferSize  = 256
)

type EventBrokerOptions struct {
	EventBrokerType events.EventBrokerType
	Kafka           events.KafkaConfig
	RabbitMQ        events.RabbitMQConfig
	// ConsumerGroupID is the Kafka consumer group, and the RabbitMQ consumer tag prefix.
	ConsumerGroupID string
}

// NewEventProducer creates the producer of the configured broker, or retrieves the one already created.
func NewEventProducer(ctx context.Context, opts EventBrokerOptions) (events.Producer, error) {
	return getOrCreate(EventProducerInstanceName, func() (events.Producer, error) {
		log.Ctx(ctx).Infof("⚙️ Setting up %s event producer", opts.EventBrokerType)
		switch opts.EventBrokerType {
		case events.KafkaEventBrokerType:
			return events.NewKafkaProducer(opts.Kafka)
		case events.RabbitMQEventBrokerType:
			return events.NewRabbitMQProducer(opts.RabbitMQ)
		case events.InMemoryEventBrokerType:
			log.Ctx(ctx).Warn("The IN_MEMORY event broker only delivers messages inside this process.")
			return events.NewInMemoryBroker(inMemoryBrokerBufferSize), nil
		default:
			return nil, fmt.Errorf("unknown event broker type: %q", opts.EventBrokerType)
		}
	})
}

// NewEventConsumer creates a consumer of topic on the configured broker. The IN_MEMORY consumers read from the
// broker returned by NewEventProducer, so the producer is created first when needed.
func NewEventConsumer(ctx context.Context, opts EventBrokerOptions, topic string, handlers ...events.EventHandler) (events.Consumer, error) {
	switch opts.EventBrokerType {
	case events.KafkaEventBrokerType:
		return events.NewKafkaConsumer(opts.Kafka, topic, opts.ConsumerGroupID, handlers...)
	case events.RabbitMQEventBrokerType:
		return events.NewRabbitMQConsumer(opts.RabbitMQ, topic, fmt.Sprintf("%s-%s", opts.ConsumerGroupID, topic), handlers...)
	case events.InMemoryEventBrokerType:
		producer, err := NewEventProducer(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("getting in-memory broker: %w", err)
		}
		broker, ok := producer.(*events.InMemoryBroker)
		if !ok {
			return nil, fmt.Errorf("the event producer is a %T, not an in-memory broker", producer)
		}
		return broker.NewConsumer(topic, handlers...), nil
	default:
		return nil, fmt.Errorf("unknown event broker type: %q", opts.EventBrokerType)
	}
}
