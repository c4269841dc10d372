package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stellar/go-stellar-sdk/support/log"
)

const DefaultInMemoryBufferSize = 256

var ErrBrokerClosed = errors.New("event broker is closed")

// InMemoryBroker delivers messages between producers and consumers of the same process. Each topic is a buffered
// queue, a message is delivered to a single consumer of the topic.
type InMemoryBroker struct {
	mu         sync.Mutex
	queues     map[string]chan Message
	bufferSize int
	closed     chan struct{}
	closeOnce  sync.Once
}

func NewInMemoryBroker(bufferSize int) *InMemoryBroker {
	if bufferSize <= 0 {
		bufferSize = DefaultInMemoryBufferSize
	}
	return &InMemoryBroker{
		queues:     map[string]chan Message{},
		bufferSize: bufferSize,
		closed:     make(chan struct{}),
	}
}

func (b *InMemoryBroker) queue(topic string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[topic]
	if !ok {
		q = make(chan Message, b.bufferSize)
		b.queues[topic] = q
	}
	return q
}

// WriteMessages blocks while the queue of a topic is full.
func (b *InMemoryBroker) WriteMessages(ctx context.Context, messages ...Message) error {
	for _, msg := range messages {
		if msg.Topic == "" {
			return ErrTopicRequired
		}
		if err := b.Ping(ctx); err != nil {
			return err
		}
		select {
		case <-b.closed:
			return ErrBrokerClosed
		case <-ctx.Done():
			return fmt.Errorf("writing message to topic %s: %w", msg.Topic, ctx.Err())
		case b.queue(msg.Topic) <- msg.Clone():
		}
	}
	return nil
}

func (b *InMemoryBroker) Ping(context.Context) error {
	select {
	case <-b.closed:
		return ErrBrokerClosed
	default:
		return nil
	}
}

func (b *InMemoryBroker) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		log.Ctx(ctx).Info("closing in-memory event broker")
		close(b.closed)
	})
}

func (b *InMemoryBroker) BrokerType() EventBrokerType {
	return InMemoryEventBrokerType
}

// Pending returns how many messages are waiting on topic.
func (b *InMemoryBroker) Pending(topic string) int {
	return len(b.queue(topic))
}

// NewConsumer returns a consumer of topic.
func (b *InMemoryBroker) NewConsumer(topic string, handlers ...EventHandler) *InMemoryConsumer {
	return &InMemoryConsumer{broker: b, topic: topic, handlers: handlers}
}

var _ Producer = (*InMemoryBroker)(nil)

type InMemoryConsumer struct {
	broker   *InMemoryBroker
	topic    string
	handlers []EventHandler
}

func (c *InMemoryConsumer) ReadMessage(ctx context.Context) (*Message, error) {
	select {
	case <-c.broker.closed:
		return nil, ErrBrokerClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("reading message from topic %s: %w", c.topic, ctx.Err())
	case msg := <-c.broker.queue(c.topic):
		return &msg, nil
	}
}

func (c *InMemoryConsumer) Topic() string {
	return c.topic
}

func (c *InMemoryConsumer) Handlers() []EventHandler {
	return c.handlers
}

func (c *InMemoryConsumer) Close() error {
	return nil
}

func (c *InMemoryConsumer) BrokerType() EventBrokerType {
	return InMemoryEventBrokerType
}

var _ Consumer = (*InMemoryConsumer)(nil)
