package queuetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pixelvide/wq-go/pkg/queue"
)

// MockAdapter is a testify mock of queue.Adapter.
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*queue.Entry, error) {
	args := m.Called(ctx, queues, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Entry), args.Error(1)
}

func (m *MockAdapter) Store(ctx context.Context, queueName string, j queue.Job, delay time.Duration) error {
	args := m.Called(ctx, queueName, j, delay)
	return args.Error(0)
}

func (m *MockAdapter) Requeue(ctx context.Context, entry *queue.Entry, delay time.Duration, queueName string) error {
	args := m.Called(ctx, entry, delay, queueName)
	return args.Error(0)
}

func (m *MockAdapter) Bury(ctx context.Context, entry *queue.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAdapter) Delete(ctx context.Context, entry *queue.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAdapter) Disconnect() error {
	args := m.Called()
	return args.Error(0)
}
