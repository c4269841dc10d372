package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stellar/go-stellar-sdk/support/log"
)

// headerMessageKey carries Message.Key, RabbitMQ has no message key.
const headerMessageKey = "messageKey"

var ErrDeliveriesClosed = errors.New("rabbitmq deliveries channel was closed")

type RabbitMQConfig struct {
	URL string
}

func (c RabbitMQConfig) Validate() error {
	if c.URL == "" {
		return errors.New("rabbitmq url is required")
	}
	return nil
}

func declareQueue(channel *amqp.Channel, topic string) error {
	_, err := channel.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declaring queue %s: %w", topic, err)
	}
	return nil
}

// RabbitMQProducer publishes every topic to a durable queue with the same name through the default exchange.
type RabbitMQProducer struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

func NewRabbitMQProducer(config RabbitMQConfig) (*RabbitMQProducer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating rabbitmq config: %w", err)
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	return &RabbitMQProducer{conn: conn, channel: channel, declared: map[string]bool{}}, nil
}

func (r *RabbitMQProducer) WriteMessages(ctx context.Context, messages ...Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range messages {
		if !r.declared[msg.Topic] {
			if err := declareQueue(r.channel, msg.Topic); err != nil {
				return err
			}
			r.declared[msg.Topic] = true
		}

		publishing, err := toPublishing(msg)
		if err != nil {
			return fmt.Errorf("converting message %s: %w", msg, err)
		}

		if err = r.channel.PublishWithContext(ctx, "", msg.Topic, false, false, publishing); err != nil {
			log.Ctx(ctx).Errorf("writing message on rabbitmq: %s", err.Error())
			return fmt.Errorf("writing message on rabbitmq: %w", err)
		}
	}
	return nil
}

func (r *RabbitMQProducer) Ping(context.Context) error {
	if r.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

func (r *RabbitMQProducer) Close(ctx context.Context) {
	log.Ctx(ctx).Info("closing rabbitmq producer")
	if err := r.channel.Close(); err != nil {
		log.Ctx(ctx).Errorf("closing rabbitmq channel: %v", err)
	}
	if err := r.conn.Close(); err != nil {
		log.Ctx(ctx).Errorf("closing rabbitmq connection: %v", err)
	}
}

func (r *RabbitMQProducer) BrokerType() EventBrokerType {
	return RabbitMQEventBrokerType
}

var _ Producer = (*RabbitMQProducer)(nil)

type RabbitMQConsumer struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	deliveries <-chan amqp.Delivery
	topic      string
	handlers   []EventHandler
}

// NewRabbitMQConsumer consumes the queue of topic one delivery at a time.
func NewRabbitMQConsumer(config RabbitMQConfig, topic, consumerTag string, handlers ...EventHandler) (*RabbitMQConsumer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating rabbitmq config: %w", err)
	}
	if topic == "" {
		return nil, ErrTopicRequired
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	consumer, err := func() (*RabbitMQConsumer, error) {
		channel, chErr := conn.Channel()
		if chErr != nil {
			return nil, fmt.Errorf("opening rabbitmq channel: %w", chErr)
		}
		if chErr = declareQueue(channel, topic); chErr != nil {
			return nil, chErr
		}
		if chErr = channel.Qos(1, 0, false); chErr != nil {
			return nil, fmt.Errorf("setting rabbitmq prefetch: %w", chErr)
		}
		deliveries, chErr := channel.Consume(
			topic,
			consumerTag,
			false, // auto-ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if chErr != nil {
			return nil, fmt.Errorf("consuming queue %s: %w", topic, chErr)
		}
		return &RabbitMQConsumer{conn: conn, channel: channel, deliveries: deliveries, topic: topic, handlers: handlers}, nil
	}()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return consumer, nil
}

func (r *RabbitMQConsumer) ReadMessage(ctx context.Context) (*Message, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("reading message from queue %s: %w", r.topic, ctx.Err())
	case delivery, ok := <-r.deliveries:
		if !ok {
			return nil, ErrDeliveriesClosed
		}

		msg, err := fromDelivery(r.topic, delivery)
		if err != nil {
			// a delivery that can't be converted would be redelivered forever, the consumer dead-letters it
			_ = delivery.Reject(false)
			return nil, fmt.Errorf("converting rabbitmq delivery: %w", err)
		}
		if err = delivery.Ack(false); err != nil {
			return nil, fmt.Errorf("acknowledging delivery: %w", err)
		}
		return msg, nil
	}
}

func (r *RabbitMQConsumer) Topic() string {
	return r.topic
}

func (r *RabbitMQConsumer) Handlers() []EventHandler {
	return r.handlers
}

func (r *RabbitMQConsumer) Close() error {
	log.Infof("closing rabbitmq consumer for queue %s", r.topic)
	return errors.Join(r.channel.Close(), r.conn.Close())
}

func (r *RabbitMQConsumer) BrokerType() EventBrokerType {
	return RabbitMQEventBrokerType
}

var _ Consumer = (*RabbitMQConsumer)(nil)

func toPublishing(msg Message) (amqp.Publishing, error) {
	headers, err := transportHeaders(msg)
	if err != nil {
		return amqp.Publishing{}, err
	}

	table := make(amqp.Table, len(headers)+1)
	for name, value := range headers {
		table[name] = value
	}
	table[headerMessageKey] = msg.Key

	return amqp.Publishing{
		Headers:       table,
		ContentType:   "application/octet-stream",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.CorrelationID(),
		Type:          msg.Type(),
		Timestamp:     time.Now().UTC(),
		Body:          msg.Payload,
	}, nil
}

func fromDelivery(topic string, delivery amqp.Delivery) (*Message, error) {
	msg := &Message{
		Topic:   topic,
		Payload: delivery.Body,
		Headers: make(map[string]string, len(delivery.Headers)),
	}
	var headerErr error
	for name, value := range delivery.Headers {
		var str string
		switch v := value.(type) {
		case string:
			str = v
		case []byte:
			str = string(v)
		default:
			if headerErr == nil {
				headerErr = fmt.Errorf("header %s has unsupported type %T", name, value)
			}
			continue
		}

		if name == headerMessageKey {
			msg.Key = str
			continue
		}
		msg.Headers[name] = str
	}

	if headerErr != nil {
		return nil, &MalformedMessageError{Message: msg, Err: headerErr}
	}
	if err := restoreHistory(msg); err != nil {
		return nil, &MalformedMessageError{Message: msg, Err: err}
	}
	return msg, nil
}
