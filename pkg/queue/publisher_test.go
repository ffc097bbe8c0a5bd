package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockAdapter is a mock implementation of the Adapter interface
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*Entry, error) {
	args := m.Called(ctx, queues, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *MockAdapter) Store(ctx context.Context, queueName string, j Job, delay time.Duration) error {
	args := m.Called(ctx, queueName, j, delay)
	return args.Error(0)
}

func (m *MockAdapter) Requeue(ctx context.Context, entry *Entry, delay time.Duration, queueName string) error {
	args := m.Called(ctx, entry, delay, queueName)
	return args.Error(0)
}

func (m *MockAdapter) Bury(ctx context.Context, entry *Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAdapter) Delete(ctx context.Context, entry *Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAdapter) Disconnect() error {
	args := m.Called()
	return args.Error(0)
}

func TestPublisher_Dispatch(t *testing.T) {
	mockAdapter := new(MockAdapter)
	publisher := NewPublisher(mockAdapter)

	j := &podcastJob{PodcastID: 123}
	mockAdapter.On("Store", mock.Anything, DefaultQueue, j, time.Duration(0)).Return(nil)

	err := publisher.Dispatch(context.Background(), j)
	assert.NoError(t, err)

	mockAdapter.AssertExpectations(t)
}

func TestPublisher_DispatchToQueue(t *testing.T) {
	mockAdapter := new(MockAdapter)
	publisher := NewPublisher(mockAdapter)

	j := &podcastJob{PodcastID: 5}
	mockAdapter.On("Store", mock.Anything, "emails", j, time.Duration(0)).Return(nil)

	err := publisher.DispatchToQueue(context.Background(), "emails", j)
	assert.NoError(t, err)

	mockAdapter.AssertExpectations(t)
}

func TestPublisher_DispatchLater(t *testing.T) {
	mockAdapter := new(MockAdapter)
	publisher := NewPublisher(mockAdapter)

	j := &podcastJob{}
	mockAdapter.On("Store", mock.Anything, "later", j, 30*time.Second).Return(nil).Once()
	mockAdapter.On("Store", mock.Anything, "later", j, time.Duration(0)).Return(nil).Once()

	assert.NoError(t, publisher.DispatchLater(context.Background(), "later", j, 30*time.Second))
	assert.NoError(t, publisher.DispatchLater(context.Background(), "later", j, -time.Second))

	mockAdapter.AssertExpectations(t)
}
