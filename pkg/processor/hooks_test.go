package processor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pixelvide/wq-go/pkg/processor"
	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/queue/queuetest"
)

type successCounter struct {
	processor.NopHooks
	n int
}

func (c *successCounter) Succeeded(context.Context, *queue.Entry) {
	c.n++
}

func TestMultiHooks(t *testing.T) {
	first, second := &loggingHooks{}, &loggingHooks{}
	counter := &successCounter{}
	hooks := processor.MultiHooks{first, second, counter}

	ctx := context.Background()
	entry := &queue.Entry{Job: queuetest.NewSimpleJob(5), Queue: testQueue}
	hooks.NoJobAvailable(ctx, []string{"a", "b"})
	hooks.JobAvailable(ctx, entry)
	hooks.WillRequeue(ctx, entry, 2*time.Second, nil)
	hooks.Failed(ctx, entry, nil)
	hooks.Expired(ctx, entry)
	hooks.Succeeded(ctx, entry)

	want := [][]any{
		{"NOJOBS", "a|b"},
		{"JOB", 5},
		{"REQUEUE", 5, 2},
		{"FAILED", 5},
		{"EXPIRED", 5},
		{"SUCCESS", 5},
	}
	assert.Equal(t, want, first.entries())
	assert.Equal(t, want, second.entries())
	assert.Equal(t, 1, counter.n)
}

func TestDisposition_String(t *testing.T) {
	assert.Equal(t, "delete", processor.Delete.String())
	assert.Equal(t, "bury", processor.Bury.String())
	assert.Equal(t, "move to done", processor.MoveTo("done").String())
	assert.Equal(t, "done", processor.MoveTo("done").Queue())
}
