package processor

import (
	"context"
	"time"

	"github.com/pixelvide/wq-go/pkg/queue"
)

// Hooks observe the job lifecycle. They are called synchronously by
// ProcessNextJob and cannot change what happens to the job.
type Hooks interface {
	// NoJobAvailable is called when polling queues returned nothing.
	NoJobAvailable(ctx context.Context, queues []string)
	// JobAvailable is called right before the handler runs.
	JobAvailable(ctx context.Context, entry *queue.Entry)
	// Succeeded is called right before a finished job is deleted or moved.
	Succeeded(ctx context.Context, entry *queue.Entry)
	// Expired is called right before an expired job is disposed of.
	Expired(ctx context.Context, entry *queue.Entry)
	// WillRequeue is called right before a failed job is re-queued for
	// another try. cause is nil if the handler returned ResultFailed.
	WillRequeue(ctx context.Context, entry *queue.Entry, delay time.Duration, cause error)
	// Failed is called right before a job that cannot be retried is buried
	// or deleted. cause is nil if the handler returned ResultFailed or ResultAbort.
	Failed(ctx context.Context, entry *queue.Entry, cause error)
}

// NopHooks implements Hooks with no-ops. Embed it to override single hooks.
type NopHooks struct{}

func (NopHooks) NoJobAvailable(context.Context, []string) {}
func (NopHooks) JobAvailable(context.Context, *queue.Entry) {}
func (NopHooks) Succeeded(context.Context, *queue.Entry) {}
func (NopHooks) Expired(context.Context, *queue.Entry) {}
func (NopHooks) WillRequeue(context.Context, *queue.Entry, time.Duration, error) {}
func (NopHooks) Failed(context.Context, *queue.Entry, error) {}

// MultiHooks calls every hook set in order.
type MultiHooks []Hooks

func (m MultiHooks) NoJobAvailable(ctx context.Context, queues []string) {
	for _, h := range m {
		h.NoJobAvailable(ctx, queues)
	}
}

func (m MultiHooks) JobAvailable(ctx context.Context, entry *queue.Entry) {
	for _, h := range m {
		h.JobAvailable(ctx, entry)
	}
}

func (m MultiHooks) Succeeded(ctx context.Context, entry *queue.Entry) {
	for _, h := range m {
		h.Succeeded(ctx, entry)
	}
}

func (m MultiHooks) Expired(ctx context.Context, entry *queue.Entry) {
	for _, h := range m {
		h.Expired(ctx, entry)
	}
}

func (m MultiHooks) WillRequeue(ctx context.Context, entry *queue.Entry, delay time.Duration, cause error) {
	for _, h := range m {
		h.WillRequeue(ctx, entry, delay, cause)
	}
}

func (m MultiHooks) Failed(ctx context.Context, entry *queue.Entry, cause error) {
	for _, h := range m {
		h.Failed(ctx, entry, cause)
	}
}
