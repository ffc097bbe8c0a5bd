package blackhole

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/queue/queuetest"
)

func TestServer_SwallowsJobs(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "q", queuetest.NewSimpleJob(1), 0))
	require.NoError(t, s.Store(ctx, "q", queuetest.NewSimpleJob(2), 10*time.Second))

	entry, err := s.NextEntry(ctx, []string{"q"}, queue.NoBlock)
	require.NoError(t, err)
	assert.Nil(t, entry)

	fake := &queue.Entry{Job: queuetest.NewSimpleJob(3), Queue: "q"}
	assert.NoError(t, s.Requeue(ctx, fake, 0, ""))
	assert.NoError(t, s.Bury(ctx, fake))
	assert.NoError(t, s.Delete(ctx, fake))
	assert.NoError(t, s.Disconnect())
	assert.NoError(t, s.Disconnect())
}

func TestServer_WaitsForTimeout(t *testing.T) {
	s := New()

	start := time.Now()
	entry, err := s.NextEntry(context.Background(), []string{"q"}, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestServer_ForeverEndsWithContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.NextEntry(ctx, []string{"q"}, queue.Forever)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
