package events

import (
	"context"
	"fmt"
	"strings"
)

// Topics
const (
	TenantLifecycleTopic           = "tenant-lifecycle"
	TenantDatabaseProvisionedTopic = "tenant-database-provisioned"
	TenantRealmProvisionedTopic    = "tenant-realm-provisioned"
	TenantIdentityProviderTopic    = "tenant-identity-provider"
	TenantNotificationTopic        = "tenant-notification"

	DeadLetterTopicSuffix = ".dlq"
)

// Message types
const (
	TenantCreateType              = "tenant-create"
	TenantShutdownType            = "tenant-shutdown"
	TenantDatabaseProvisionedType = "tenant-database-provisioned"
	TenantRealmProvisionedType    = "tenant-realm-provisioned"
	IdentityProviderUpsertType    = "identity-provider-upsert"
	IdentityProviderDeleteType    = "identity-provider-delete"
	TenantNotificationType        = "tenant-notification"
)

// DeadLetterTopic returns the topic where messages of topic that can't be handled are sent.
func DeadLetterTopic(topic string) string {
	return topic + DeadLetterTopicSuffix
}

type EventBrokerType string

const (
	KafkaEventBrokerType    EventBrokerType = "KAFKA"
	RabbitMQEventBrokerType EventBrokerType = "RABBITMQ"
	// InMemoryEventBrokerType delivers messages inside a single process.
	InMemoryEventBrokerType EventBrokerType = "IN_MEMORY"
)

func ParseEventBrokerType(ebType string) (EventBrokerType, error) {
	brokerType := EventBrokerType(strings.ToUpper(strings.TrimSpace(ebType)))
	switch brokerType {
	case KafkaEventBrokerType, RabbitMQEventBrokerType, InMemoryEventBrokerType:
		return brokerType, nil
	default:
		return "", fmt.Errorf("invalid event broker type %q", ebType)
	}
}

type Producer interface {
	WriteMessages(ctx context.Context, messages ...Message) error
	Ping(ctx context.Context) error
	Close(ctx context.Context)
	BrokerType() EventBrokerType
}

type Consumer interface {
	// ReadMessage blocks until a message is available. The message is acknowledged on the broker before it's
	// returned: retries and dead lettering are handled by EventConsumer. A message that can't be decoded is
	// acknowledged too and reported as a *MalformedMessageError.
	ReadMessage(ctx context.Context) (*Message, error)
	Topic() string
	Handlers() []EventHandler
	Close() error
	BrokerType() EventBrokerType
}

// MalformedMessageError is returned by a Consumer for a message it took off the broker but could not decode.
// Message holds what could be read, so the message can still be dead-lettered.
type MalformedMessageError struct {
	Message *Message
	Err     error
}

func (e *MalformedMessageError) Error() string {
	return e.Err.Error()
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// Publisher seals messages for the tenant in the context and writes them to a producer.
type Publisher struct {
	codec    *Codec
	producer Producer
}

func NewPublisher(codec *Codec, producer Producer) (*Publisher, error) {
	if codec == nil {
		return nil, fmt.Errorf("codec cannot be nil")
	}
	if producer == nil {
		return nil, fmt.Errorf("producer cannot be nil")
	}
	return &Publisher{codec: codec, producer: producer}, nil
}

func (p *Publisher) Publish(ctx context.Context, topic, key, messageType string, data any, opts ...SealOption) error {
	msg, err := p.codec.Seal(ctx, topic, key, messageType, data, opts...)
	if err != nil {
		return fmt.Errorf("sealing %s message: %w", messageType, err)
	}

	if err = p.producer.WriteMessages(ctx, *msg); err != nil {
		return fmt.Errorf("publishing %s message to topic %s: %w", messageType, topic, err)
	}
	return nil
}

func (p *Publisher) Codec() *Codec {
	return p.codec
}
