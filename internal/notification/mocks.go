package notification

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

var _ Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, n Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockNotifier) NotifierType() NotifierType {
	return m.Called().Get(0).(NotifierType)
}

type testInterface interface {
	mock.TestingT
	Cleanup(func())
}

func NewMockNotifier(t testInterface) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
