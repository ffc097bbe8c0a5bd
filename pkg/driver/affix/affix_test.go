package affix

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pixelvide/wq-go/pkg/driver/memory"
	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/queue/queuetest"
)

func TestAdapter_RewritesQueueNames(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		suffix string
		want   string
	}{
		{"none", "", "", "foo"},
		{"prefix", "MYAPPNAME-", "", "MYAPPNAME-foo"},
		{"suffix", "", "-DEV", "foo-DEV"},
		{"both", "MYAPPNAME-", "-TEST", "MYAPPNAME-foo-TEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ws := new(queuetest.MockAdapter)
			a := New(ws).WithPrefix(tt.prefix).WithSuffix(tt.suffix)

			j := queuetest.NewSimpleJob(1)
			entry := &queue.Entry{Job: j, Queue: tt.want, Handle: "h"}

			ws.On("NextEntry", mock.Anything, []string{tt.want, tt.want}, queue.NoBlock).Return(nil, nil).Once()
			ws.On("Store", mock.Anything, tt.want, j, 5*time.Second).Return(nil).Once()
			ws.On("Requeue", mock.Anything, entry, time.Second, "").Return(nil).Once()
			ws.On("Requeue", mock.Anything, entry, time.Duration(0), tt.prefix+"done"+tt.suffix).Return(nil).Once()
			ws.On("Bury", mock.Anything, entry).Return(nil).Once()
			ws.On("Delete", mock.Anything, entry).Return(nil).Once()
			ws.On("Disconnect").Return(nil).Once()

			_, err := a.NextEntry(ctx, []string{"foo", "foo"}, queue.NoBlock)
			assert.NoError(t, err)
			assert.NoError(t, a.Store(ctx, "foo", j, 5*time.Second))
			assert.NoError(t, a.Requeue(ctx, entry, time.Second, ""))
			assert.NoError(t, a.Requeue(ctx, entry, 0, "done"))
			assert.NoError(t, a.Bury(ctx, entry))
			assert.NoError(t, a.Delete(ctx, entry))
			assert.NoError(t, a.Disconnect())

			ws.AssertExpectations(t)
		})
	}
}

func TestAdapter_Conformance(t *testing.T) {
	queuetest.RunAdapterSuite(t, func(t *testing.T) *queuetest.Harness {
		clock := queuetest.NewClock()
		inner := memory.New(memory.WithClock(clock.Now), memory.WithPollInterval(5*time.Millisecond))
		return &queuetest.Harness{
			Adapter: New(inner).WithPrefix("app-").WithSuffix("-test"),
			Clock:   clock,
			Lease:   memory.DefaultLease,
		}
	})
}

func TestAdapter_EntriesReportUnaffixedQueue(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	a := New(inner).WithPrefix("app-")

	assert.NoError(t, a.Store(ctx, "email", queuetest.NewSimpleJob(4), 0))
	assert.Equal(t, 1, inner.Len("app-email"))

	entry, err := a.NextEntry(ctx, []string{"email"}, queue.NoBlock)
	assert.NoError(t, err)
	if assert.NotNil(t, entry) {
		assert.Equal(t, "email", entry.Queue)
		assert.NoError(t, a.Delete(ctx, entry))
		assert.Equal(t, 0, inner.Len("app-email"))
	}
}
