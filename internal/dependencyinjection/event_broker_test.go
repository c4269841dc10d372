package dependencyinjection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/internal/events"
)

func Test_NewEventProducer(t *testing.T) {
	ctx := context.Background()

	t.Run("in memory producer is created once", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		opts := EventBrokerOptions{EventBrokerType: events.InMemoryEventBrokerType}
		producer, err := NewEventProducer(ctx, opts)
		require.NoError(t, err)
		assert.Equal(t, events.InMemoryEventBrokerType, producer.BrokerType())

		producerDuplicate, err := NewEventProducer(ctx, opts)
		require.NoError(t, err)
		assert.Same(t, producer, producerDuplicate)
	})

	t.Run("kafka without brokers", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		_, err := NewEventProducer(ctx, EventBrokerOptions{EventBrokerType: events.KafkaEventBrokerType})
		assert.ErrorContains(t, err, "kafka brokers are required")
		_, ok := GetInstance(EventProducerInstanceName)
		assert.False(t, ok)
	})

	t.Run("unknown broker", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		_, err := NewEventProducer(ctx, EventBrokerOptions{})
		assert.EqualError(t, err, `unknown event broker type: ""`)
	})
}

func Test_NewEventConsumer(t *testing.T) {
	ctx := context.Background()

	t.Run("in memory consumers read what the producer writes", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		opts := EventBrokerOptions{EventBrokerType: events.InMemoryEventBrokerType}
		consumer, err := NewEventConsumer(ctx, opts, events.TenantLifecycleTopic)
		require.NoError(t, err)
		assert.Equal(t, events.TenantLifecycleTopic, consumer.Topic())

		producer, err := NewEventProducer(ctx, opts)
		require.NoError(t, err)
		require.NoError(t, producer.WriteMessages(ctx, events.Message{Topic: events.TenantLifecycleTopic, Key: "acme"}))

		msg, err := consumer.ReadMessage(ctx)
		require.NoError(t, err)
		assert.Equal(t, "acme", msg.Key)
	})

	t.Run("the producer instance is not an in memory broker", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		SetInstance(EventProducerInstanceName, events.NewMockProducer(t))
		_, err := NewEventConsumer(ctx, EventBrokerOptions{EventBrokerType: events.InMemoryEventBrokerType}, events.TenantLifecycleTopic)
		assert.ErrorContains(t, err, "not an in-memory broker")
	})

	t.Run("kafka consumer", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		opts := EventBrokerOptions{
			EventBrokerType: events.KafkaEventBrokerType,
			Kafka:           events.KafkaConfig{Brokers: []string{"localhost:9092"}},
			ConsumerGroupID: "tenant-control-plane",
		}
		consumer, err := NewEventConsumer(ctx, opts, events.TenantNotificationTopic)
		require.NoError(t, err)
		assert.Equal(t, events.KafkaEventBrokerType, consumer.BrokerType())
		assert.NoError(t, consumer.Close())
	})
}
