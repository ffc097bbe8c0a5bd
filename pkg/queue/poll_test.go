package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_NoBlockTriesOnce(t *testing.T) {
	calls := 0
	entry, err := Poll(context.Background(), NoBlock, time.Millisecond, func(context.Context) (*Entry, error) {
		calls++
		return nil, nil
	})

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, 1, calls)
}

func TestPoll_WaitsForEntry(t *testing.T) {
	calls := 0
	want := &Entry{Queue: "q"}
	entry, err := Poll(context.Background(), time.Second, 5*time.Millisecond, func(context.Context) (*Entry, error) {
		calls++
		if calls == 3 {
			return want, nil
		}
		return nil, nil
	})

	require.NoError(t, err)
	assert.Same(t, want, entry)
}

func TestPoll_TimesOut(t *testing.T) {
	start := time.Now()
	entry, err := Poll(context.Background(), 30*time.Millisecond, 10*time.Millisecond, func(context.Context) (*Entry, error) {
		return nil, nil
	})

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestPoll_ForeverStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := Poll(ctx, Forever, 5*time.Millisecond, func(context.Context) (*Entry, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoll_ReturnsFetchError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Poll(context.Background(), time.Second, time.Millisecond, func(context.Context) (*Entry, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
