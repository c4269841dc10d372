package events

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/segmentio/kafka-go"
	"github.com/stellar/go-stellar-sdk/support/log"
)

type KafkaConfig struct {
	Brokers []string
}

func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka brokers are required")
	}
	return nil
}

// KafkaProducer writes messages keyed by their message key, so the messages of a tenant keep their order within a
// partition.
type KafkaProducer struct {
	writer  *kafka.Writer
	brokers []string
}

func NewKafkaProducer(config KafkaConfig) (*KafkaProducer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating kafka config: %w", err)
	}

	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(config.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		brokers: config.Brokers,
	}, nil
}

func (k *KafkaProducer) WriteMessages(ctx context.Context, messages ...Message) error {
	kafkaMessages := make([]kafka.Message, 0, len(messages))
	for _, msg := range messages {
		kafkaMessage, err := toKafkaMessage(msg)
		if err != nil {
			return fmt.Errorf("converting message %s: %w", msg, err)
		}
		kafkaMessages = append(kafkaMessages, kafkaMessage)
	}

	if err := k.writer.WriteMessages(ctx, kafkaMessages...); err != nil {
		log.Ctx(ctx).Errorf("writing message on kafka: %s", err.Error())
		return fmt.Errorf("writing message on kafka: %w", err)
	}
	return nil
}

func (k *KafkaProducer) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return fmt.Errorf("dialing kafka broker: %w", err)
	}
	return conn.Close()
}

func (k *KafkaProducer) Close(ctx context.Context) {
	log.Ctx(ctx).Info("closing kafka producer")
	if err := k.writer.Close(); err != nil {
		log.Ctx(ctx).Errorf("closing kafka producer: %v", err)
	}
}

func (k *KafkaProducer) BrokerType() EventBrokerType {
	return KafkaEventBrokerType
}

var _ Producer = (*KafkaProducer)(nil)

type KafkaConsumer struct {
	reader   *kafka.Reader
	topic    string
	handlers []EventHandler
}

func NewKafkaConsumer(config KafkaConfig, topic, consumerGroupID string, handlers ...EventHandler) (*KafkaConsumer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating kafka config: %w", err)
	}
	if topic == "" {
		return nil, ErrTopicRequired
	}
	if consumerGroupID == "" {
		return nil, errors.New("consumer group ID is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: config.Brokers,
		GroupID: consumerGroupID,
		Topic:   topic,
	})
	return &KafkaConsumer{reader: reader, topic: topic, handlers: handlers}, nil
}

func (k *KafkaConsumer) ReadMessage(ctx context.Context) (*Message, error) {
	kafkaMessage, err := k.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching message from kafka: %w", err)
	}

	// Committed even when it can't be converted: the consumer dead-letters it instead of the reader skipping it.
	msg, convertErr := fromKafkaMessage(kafkaMessage)
	if err = k.reader.CommitMessages(ctx, kafkaMessage); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}
	if convertErr != nil {
		return nil, fmt.Errorf("converting kafka message: %w", convertErr)
	}
	return msg, nil
}

func (k *KafkaConsumer) Topic() string {
	return k.topic
}

func (k *KafkaConsumer) Handlers() []EventHandler {
	return k.handlers
}

func (k *KafkaConsumer) Close() error {
	log.Infof("closing kafka consumer for topic %s", k.topic)
	if err := k.reader.Close(); err != nil {
		return fmt.Errorf("closing kafka reader: %w", err)
	}
	return nil
}

func (k *KafkaConsumer) BrokerType() EventBrokerType {
	return KafkaEventBrokerType
}

var _ Consumer = (*KafkaConsumer)(nil)

func toKafkaMessage(msg Message) (kafka.Message, error) {
	headers, err := transportHeaders(msg)
	if err != nil {
		return kafka.Message{}, err
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	kafkaHeaders := make([]kafka.Header, 0, len(names))
	for _, name := range names {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: name, Value: []byte(headers[name])})
	}

	return kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Payload,
		Headers: kafkaHeaders,
	}, nil
}

func fromKafkaMessage(kafkaMessage kafka.Message) (*Message, error) {
	msg := &Message{
		Topic:   kafkaMessage.Topic,
		Key:     string(kafkaMessage.Key),
		Payload: kafkaMessage.Value,
		Headers: make(map[string]string, len(kafkaMessage.Headers)),
	}
	for _, header := range kafkaMessage.Headers {
		// the first header with a name wins
		if _, exists := msg.Headers[header.Key]; !exists {
			msg.Headers[header.Key] = string(header.Value)
		}
	}

	if err := restoreHistory(msg); err != nil {
		return nil, &MalformedMessageError{Message: msg, Err: err}
	}
	return msg, nil
}
