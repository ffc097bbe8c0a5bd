package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/queue/queuetest"
)

func newTestAdapter(t *testing.T, opts ...Option) (*Adapter, *miniredis.Miniredis, *queuetest.Clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	clock := queuetest.NewClock()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	a := New(client, append([]Option{WithClock(clock.Now), WithPollInterval(10 * time.Millisecond)}, opts...)...)
	t.Cleanup(func() { _ = a.Disconnect() })
	return a, mr, clock
}

func TestAdapter_Conformance(t *testing.T) {
	queuetest.RunAdapterSuite(t, func(t *testing.T) *queuetest.Harness {
		a, _, clock := newTestAdapter(t)
		return &queuetest.Harness{Adapter: a, Clock: clock, Lease: DefaultLease}
	})
}

func TestAdapter_KeyLayout(t *testing.T) {
	a, mr, _ := newTestAdapter(t, WithPrefix("app"))
	ctx := context.Background()

	require.NoError(t, a.Store(ctx, "mail", queuetest.NewSimpleJob(1), 0))

	members, err := mr.ZMembers("app:queue:mail")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, mr.Exists("app:job:"+members[0]))

	n, err := a.Len(ctx, "mail")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAdapter_SequentialIDs(t *testing.T) {
	a, mr, _ := newTestAdapter(t)
	ctx := context.Background()
	for m := 1; m <= 3; m++ {
		require.NoError(t, a.Store(ctx, "seq", queuetest.NewSimpleJob(m), 0))
	}

	members, err := mr.ZMembers("wq:queue:seq")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"00000000000000000001",
		"00000000000000000002",
		"00000000000000000003",
	}, members)
}

func TestAdapter_RequeueSurvivesStaleDelete(t *testing.T) {
	a, mr, clock := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Store(ctx, "race", queuetest.NewSimpleJob(5), 0))

	first, err := a.NextEntry(ctx, []string{"race"}, queue.NoBlock)
	require.NoError(t, err)
	require.NotNil(t, first)

	clock.Advance(DefaultLease + time.Second)
	second, err := a.NextEntry(ctx, []string{"race"}, queue.NoBlock)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, first.Handle, second.Handle)

	// The first holder retries after its lease ran out, then the second
	// holder finishes with the old id.
	require.NoError(t, a.Requeue(ctx, first, 0, ""))
	require.NoError(t, a.Delete(ctx, second))

	members, err := mr.ZMembers("wq:queue:race")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.NotEqual(t, first.Handle, members[0])
	assert.True(t, mr.Exists("wq:job:"+members[0]))
	assert.False(t, mr.Exists("wq:job:"+first.Handle.(string)))

	retried, err := a.NextEntry(ctx, []string{"race"}, queue.NoBlock)
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, 5, queuetest.Marker(retried.Job))
	assert.Equal(t, 2, retried.Job.TryIndex())
}

func TestAdapter_DelayedScore(t *testing.T) {
	a, mr, clock := newTestAdapter(t)

	require.NoError(t, a.Store(context.Background(), "later", queuetest.NewSimpleJob(1), 30*time.Second))

	members, err := mr.ZMembers("wq:queue:later")
	require.NoError(t, err)
	score, err := mr.ZScore("wq:queue:later", members[0])
	require.NoError(t, err)
	assert.Equal(t, float64(clock.Now().Add(30*time.Second).UnixMilli()), score)
}

func TestAdapter_BuryKeepsPayload(t *testing.T) {
	a, mr, _ := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, a.Store(ctx, "bury", queuetest.NewSimpleJob(42), 0))

	entry, err := a.NextEntry(ctx, []string{"bury"}, queue.NoBlock)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NoError(t, a.Bury(ctx, entry))

	buried, err := a.Buried(ctx, "bury")
	require.NoError(t, err)
	require.Len(t, buried, 1)

	j, err := queue.DefaultCodec().Decode(buried[0])
	require.NoError(t, err)
	assert.Equal(t, 42, queuetest.Marker(j))
	assert.False(t, mr.Exists("wq:job:"+entry.Handle.(string)))
}

func TestAdapter_MalformedPayload(t *testing.T) {
	a, mr, clock := newTestAdapter(t)
	_, err := mr.ZAdd("wq:queue:broken", float64(clock.Now().UnixMilli()), "x1")
	require.NoError(t, err)
	require.NoError(t, mr.Set("wq:job:x1", "{not json"))

	_, err = a.NextEntry(context.Background(), []string{"broken"}, queue.NoBlock)

	var ue *queue.UnserializationError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "broken", ue.Queue)
	assert.Equal(t, "x1", ue.Handle)
}

func TestAdapter_DanglingIDIsDropped(t *testing.T) {
	a, mr, clock := newTestAdapter(t)
	_, err := mr.ZAdd("wq:queue:dangling", float64(clock.Now().UnixMilli()), "gone")
	require.NoError(t, err)

	entry, err := a.NextEntry(context.Background(), []string{"dangling"}, queue.NoBlock)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.False(t, mr.Exists("wq:queue:dangling"))
}

func TestAdapter_ConnectionError(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	a := New(client)
	defer a.Disconnect()

	_, err := a.NextEntry(context.Background(), []string{"jobs"}, queue.NoBlock)
	assert.True(t, queue.IsConnectionError(err), "got %v", err)

	err = a.Store(context.Background(), "jobs", queuetest.NewSimpleJob(1), 0)
	assert.True(t, queue.IsConnectionError(err), "got %v", err)
}

func TestAdapter_UseAfterDisconnect(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	require.NoError(t, a.Disconnect())

	_, err := a.NextEntry(context.Background(), []string{"jobs"}, queue.NoBlock)
	assert.ErrorIs(t, err, queue.ErrDisconnected)
	assert.ErrorIs(t, a.Store(context.Background(), "jobs", queuetest.NewSimpleJob(1), 0), queue.ErrDisconnected)
}

func TestAdapter_ForeignHandle(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	entry := &queue.Entry{Job: queuetest.NewSimpleJob(1), Queue: "jobs", Handle: 17}

	assert.Error(t, a.Delete(context.Background(), entry))
	assert.Error(t, a.Bury(context.Background(), entry))
	assert.Error(t, a.Requeue(context.Background(), entry, 0, ""))
}
