package queue

import (
	"context"
	"time"
)

// DefaultPollInterval is how often polling adapters re-check their queues.
const DefaultPollInterval = 250 * time.Millisecond

// FetchFunc makes one non-blocking attempt to reserve an entry.
type FetchFunc func(ctx context.Context) (*Entry, error)

// Poll calls fetch until it returns an entry or an error, or until timeout
// elapses. Backends that cannot block natively use it to implement the
// NextEntry timeout semantics: NoBlock tries once, a negative timeout waits
// until ctx is done.
func Poll(ctx context.Context, timeout, interval time.Duration, fetch FetchFunc) (*Entry, error) {
	entry, err := fetch(ctx)
	if err != nil || entry != nil {
		return entry, err
	}
	if timeout == NoBlock {
		return nil, nil
	}

	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		if interval > timeout {
			interval = timeout
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			// One last attempt, so that a job stored right before the deadline is not missed.
			return fetch(ctx)
		case <-ticker.C:
			entry, err := fetch(ctx)
			if err != nil || entry != nil {
				return entry, err
			}
		}
	}
}
