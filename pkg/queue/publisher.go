package queue

import (
	"context"
	"time"
)

// DefaultQueue is the queue Dispatch stores jobs in.
const DefaultQueue = "default"

// Publisher handles dispatching jobs to the queue
type Publisher struct {
	adapter Adapter
}

// NewPublisher creates a new Publisher instance
func NewPublisher(adapter Adapter) *Publisher {
	return &Publisher{adapter: adapter}
}

// Dispatch stores a job in the default queue, ready for immediate processing.
func (p *Publisher) Dispatch(ctx context.Context, j Job) error {
	return p.adapter.Store(ctx, DefaultQueue, j, 0)
}

// DispatchToQueue stores a job in a specific queue.
func (p *Publisher) DispatchToQueue(ctx context.Context, queueName string, j Job) error {
	return p.adapter.Store(ctx, queueName, j, 0)
}

// DispatchLater stores a job that only becomes available after delay.
func (p *Publisher) DispatchLater(ctx context.Context, queueName string, j Job, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return p.adapter.Store(ctx, queueName, j, delay)
}
