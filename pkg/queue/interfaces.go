package queue

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the usual NextEntry timeout.
	DefaultTimeout = 5 * time.Second
	// NoBlock makes NextEntry return immediately when no job is ready.
	NoBlock time.Duration = 0
	// Forever makes NextEntry block until a job becomes available
	// (or the context is cancelled). Any negative timeout behaves the same.
	Forever time.Duration = -1
)

// Adapter is a work server: something that stores jobs in named work queues.
//
// A Redis server or a SQL table might be such a work server; the memory and
// black hole adapters exist for tests. Implementations must make NextEntry
// claim the entry it returns atomically, so that concurrent pollers never
// receive the same reservation.
type Adapter interface {
	// NextEntry takes the next ready job from the first of queues that has one
	// and reserves it for a short time. It returns (nil, nil) if no job was
	// available within timeout.
	NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*Entry, error)
	// Store serializes job into queueName. The job becomes available after delay.
	Store(ctx context.Context, queueName string, job Job, delay time.Duration) error
	// Requeue stores the entry's job again, with its try counter advanced, and
	// removes the entry. An empty queueName means the entry's origin queue.
	Requeue(ctx context.Context, entry *Entry, delay time.Duration, queueName string) error
	// Bury keeps the entry for inspection but never returns it from NextEntry again.
	Bury(ctx context.Context, entry *Entry) error
	// Delete permanently removes the entry.
	Delete(ctx context.Context, entry *Entry) error
	// Disconnect releases backend resources. Repeated calls have no effect.
	Disconnect() error
}
