package queuetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvide/wq-go/pkg/queue"
)

// Harness is what an adapter test hands to RunAdapterSuite.
type Harness struct {
	Adapter queue.Adapter
	// Clock drives the adapter's notion of time.
	Clock *Clock
	// Lease is the adapter's reservation window.
	Lease time.Duration
}

// RunAdapterSuite checks the queue.Adapter contract. newHarness must return
// a fresh, empty adapter on every call.
func RunAdapterSuite(t *testing.T, newHarness func(t *testing.T) *Harness) {
	t.Run("EmptyQueue", func(t *testing.T) {
		h := newHarness(t)
		entry, err := h.Adapter.NextEntry(context.Background(), []string{"empty"}, queue.NoBlock)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("EmptyQueueWithTimeout", func(t *testing.T) {
		h := newHarness(t)
		start := time.Now()
		entry, err := h.Adapter.NextEntry(context.Background(), []string{"empty"}, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, entry)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("StoreFetchDelete", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		require.NoError(t, h.Adapter.Store(ctx, "jobs", NewSimpleJob(1001), 0))

		entry := mustFetch(t, h, "jobs")
		assert.Equal(t, "jobs", entry.Queue)
		assert.Equal(t, 1001, Marker(entry.Job))
		assert.Equal(t, 1, entry.Job.TryIndex())

		// Reserved entries are invisible to other pollers.
		assertEmpty(t, h, "jobs")

		require.NoError(t, h.Adapter.Delete(ctx, entry))
		h.Clock.Advance(h.Lease + time.Second)
		assertEmpty(t, h, "jobs")
	})

	t.Run("FIFO", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		for _, m := range []int{1, 2, 3} {
			require.NoError(t, h.Adapter.Store(ctx, "fifo", NewSimpleJob(m), 0))
			h.Clock.Advance(time.Millisecond)
		}
		for _, m := range []int{1, 2, 3} {
			entry := mustFetch(t, h, "fifo")
			assert.Equal(t, m, Marker(entry.Job))
			require.NoError(t, h.Adapter.Delete(ctx, entry))
		}
	})

	t.Run("FIFOWithinSameInstant", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		for m := 1; m <= 20; m++ {
			require.NoError(t, h.Adapter.Store(ctx, "burst", NewSimpleJob(m), 0))
		}
		for m := 1; m <= 20; m++ {
			entry := mustFetch(t, h, "burst")
			assert.Equal(t, m, Marker(entry.Job))
			require.NoError(t, h.Adapter.Delete(ctx, entry))
		}
	})

	t.Run("LeaseExpires", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Adapter.Store(context.Background(), "lease", NewSimpleJob(1002), 0))

		first := mustFetch(t, h, "lease")
		h.Clock.Advance(h.Lease + time.Second)
		second := mustFetch(t, h, "lease")

		assert.Equal(t, Marker(first.Job), Marker(second.Job))
	})

	t.Run("DelayedJob", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Adapter.Store(context.Background(), "delayed", NewSimpleJob(1003), 10*time.Second))

		assertEmpty(t, h, "delayed")
		h.Clock.Advance(5 * time.Second)
		assertEmpty(t, h, "delayed")
		h.Clock.Advance(5 * time.Second)

		entry := mustFetch(t, h, "delayed")
		assert.Equal(t, 1003, Marker(entry.Job))
	})

	t.Run("Requeue", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		require.NoError(t, h.Adapter.Store(ctx, "retry", NewSimpleJob(1004), 0))

		entry := mustFetch(t, h, "retry")
		require.NoError(t, h.Adapter.Requeue(ctx, entry, 5*time.Second, ""))

		assertEmpty(t, h, "retry")
		h.Clock.Advance(5 * time.Second)

		entry = mustFetch(t, h, "retry")
		assert.Equal(t, 1004, Marker(entry.Job))
		assert.Equal(t, 2, entry.Job.TryIndex())
		require.NoError(t, h.Adapter.Delete(ctx, entry))

		h.Clock.Advance(h.Lease + time.Second)
		assertEmpty(t, h, "retry")
	})

	t.Run("RequeueIntoOtherQueue", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		require.NoError(t, h.Adapter.Store(ctx, "origin", NewSimpleJob(1005), 0))

		entry := mustFetch(t, h, "origin")
		require.NoError(t, h.Adapter.Requeue(ctx, entry, 0, "finished"))

		h.Clock.Advance(h.Lease + time.Second)
		assertEmpty(t, h, "origin")
		moved := mustFetch(t, h, "finished")
		assert.Equal(t, "finished", moved.Queue)
		assert.Equal(t, 1005, Marker(moved.Job))
	})

	t.Run("Bury", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		require.NoError(t, h.Adapter.Store(ctx, "bury", NewSimpleJob(1006), 0))

		entry := mustFetch(t, h, "bury")
		require.NoError(t, h.Adapter.Bury(ctx, entry))

		h.Clock.Advance(h.Lease + time.Second)
		assertEmpty(t, h, "bury")
	})

	t.Run("MultipleEmptyQueues", func(t *testing.T) {
		h := newHarness(t)
		entry, err := h.Adapter.NextEntry(context.Background(), []string{"emptymq1", "emptymq1", "emptymq5"}, queue.NoBlock)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("PollMultipleQueues", func(t *testing.T) {
		for _, queues := range [][]string{
			{"mq1"},
			{"mq1", "mq2"},
			{"mq2", "mq1"},
			{"mq3", "mq1", "mq3", "mq3"},
			{"mq3", "mq2", "mq1"},
		} {
			h := newHarness(t)
			require.NoError(t, h.Adapter.Store(context.Background(), "mq1", NewSimpleJob(3355), 0))

			entry, err := h.Adapter.NextEntry(context.Background(), queues, queue.NoBlock)
			require.NoError(t, err)
			require.NotNil(t, entry, "polling %v", queues)
			assert.Equal(t, "mq1", entry.Queue, "polling %v", queues)
			assert.Equal(t, 3355, Marker(entry.Job))

			entry, err = h.Adapter.NextEntry(context.Background(), queues, queue.NoBlock)
			require.NoError(t, err)
			assert.Nil(t, entry)
		}
	})

	t.Run("PollOrder", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		require.NoError(t, h.Adapter.Store(ctx, "low", NewSimpleJob(1), 0))
		require.NoError(t, h.Adapter.Store(ctx, "high", NewSimpleJob(2), 0))

		entry, err := h.Adapter.NextEntry(ctx, []string{"high", "low"}, queue.NoBlock)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "high", entry.Queue)

		entry, err = h.Adapter.NextEntry(ctx, []string{"high", "low"}, queue.NoBlock)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "low", entry.Queue)
	})

	t.Run("QueueInterference", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Adapter.Store(context.Background(), "a", NewSimpleJob(7), 0))
		assertEmpty(t, h, "b")
		entry := mustFetch(t, h, "a")
		assert.Equal(t, 7, Marker(entry.Job))
	})

	t.Run("DisconnectIsIdempotent", func(t *testing.T) {
		h := newHarness(t)
		assert.NoError(t, h.Adapter.Disconnect())
		assert.NoError(t, h.Adapter.Disconnect())
	})
}

func mustFetch(t *testing.T, h *Harness, queueName string) *queue.Entry {
	t.Helper()
	entry, err := h.Adapter.NextEntry(context.Background(), []string{queueName}, queue.NoBlock)
	require.NoError(t, err)
	require.NotNil(t, entry, "expected a job in %q", queueName)
	return entry
}

func assertEmpty(t *testing.T, h *Harness, queueName string) {
	t.Helper()
	entry, err := h.Adapter.NextEntry(context.Background(), []string{queueName}, queue.NoBlock)
	require.NoError(t, err)
	assert.Nil(t, entry, "expected %q to be empty", queueName)
}
