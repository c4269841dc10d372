package events

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockConsumer struct {
	mock.Mock
}

var _ Consumer = new(MockConsumer)

func (c *MockConsumer) ReadMessage(ctx context.Context) (*Message, error) {
	args := c.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Message), args.Error(1)
}

func (c *MockConsumer) Topic() string {
	return c.Called().String(0)
}

func (c *MockConsumer) Close() error {
	return c.Called().Error(0)
}

func (c *MockConsumer) Handlers() []EventHandler {
	return c.Called().Get(0).([]EventHandler)
}

func (c *MockConsumer) BrokerType() EventBrokerType {
	return c.Called().Get(0).(EventBrokerType)
}

type MockProducer struct {
	mock.Mock
}

var _ Producer = new(MockProducer)

func (p *MockProducer) WriteMessages(ctx context.Context, messages ...Message) error {
	return p.Called(ctx, messages).Error(0)
}

func (p *MockProducer) Ping(ctx context.Context) error {
	return p.Called(ctx).Error(0)
}

func (p *MockProducer) Close(ctx context.Context) {
	p.Called(ctx)
}

func (p *MockProducer) BrokerType() EventBrokerType {
	return p.Called().Get(0).(EventBrokerType)
}

type MockEventHandler struct {
	mock.Mock
}

var _ EventHandler = new(MockEventHandler)

func (h *MockEventHandler) Name() string {
	return h.Called().String(0)
}

func (h *MockEventHandler) CanHandleMessage(ctx context.Context, message *Message) bool {
	return h.Called(ctx, message).Bool(0)
}

func (h *MockEventHandler) Handle(ctx context.Context, message *Message) error {
	return h.Called(ctx, message).Error(0)
}

type testInterface interface {
	mock.TestingT
	Cleanup(func())
}

func NewMockConsumer(t testInterface) *MockConsumer {
	m := &MockConsumer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// NewMockProducer creates a new instance of MockProducer. It also registers a testing interface on the mock and a
// cleanup function to assert the mocks expectations.
func NewMockProducer(t testInterface) *MockProducer {
	m := &MockProducer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func NewMockEventHandler(t testInterface) *MockEventHandler {
	m := &MockEventHandler{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
