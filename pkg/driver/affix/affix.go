// Package affix wraps another queue.Adapter and rewrites the work queue names
// it is called with, e.g. to add an application prefix or environment suffix:
//
//	ws := affix.New(redisAdapter).WithPrefix("myapp-").WithSuffix("-prod")
//	ws.NextEntry(ctx, []string{"email"}, queue.DefaultTimeout) // polls "myapp-email-prod"
package affix

import (
	"context"
	"strings"
	"time"

	"github.com/pixelvide/wq-go/pkg/queue"
)

type Adapter struct {
	server queue.Adapter
	prefix string
	suffix string
}

func New(server queue.Adapter) *Adapter {
	return &Adapter{server: server}
}

func (a *Adapter) WithPrefix(prefix string) *Adapter {
	a.prefix = prefix
	return a
}

func (a *Adapter) WithSuffix(suffix string) *Adapter {
	a.suffix = suffix
	return a
}

func (a *Adapter) fix(queueName string) string {
	return a.prefix + queueName + a.suffix
}

func (a *Adapter) strip(queueName string) string {
	return strings.TrimSuffix(strings.TrimPrefix(queueName, a.prefix), a.suffix)
}

// NextEntry polls the affixed queue names. Returned entries report the
// unaffixed queue name; their handle is the wrapped adapter's entry.
func (a *Adapter) NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*queue.Entry, error) {
	fixed := make([]string, len(queues))
	for i, q := range queues {
		fixed[i] = a.fix(q)
	}

	inner, err := a.server.NextEntry(ctx, fixed, timeout)
	if err != nil || inner == nil {
		return nil, err
	}
	return &queue.Entry{
		Job:    inner.Job,
		Queue:  a.strip(inner.Queue),
		Handle: inner,
		ID:     inner.ID,
	}, nil
}

func unwrap(entry *queue.Entry) *queue.Entry {
	if inner, ok := entry.Handle.(*queue.Entry); ok {
		return inner
	}
	return entry
}

func (a *Adapter) Store(ctx context.Context, queueName string, j queue.Job, delay time.Duration) error {
	return a.server.Store(ctx, a.fix(queueName), j, delay)
}

// Requeue affixes an explicit target queue; the default is the entry's
// original (affixed) queue.
func (a *Adapter) Requeue(ctx context.Context, entry *queue.Entry, delay time.Duration, queueName string) error {
	if queueName != "" {
		queueName = a.fix(queueName)
	}
	return a.server.Requeue(ctx, unwrap(entry), delay, queueName)
}

func (a *Adapter) Bury(ctx context.Context, entry *queue.Entry) error {
	return a.server.Bury(ctx, unwrap(entry))
}

func (a *Adapter) Delete(ctx context.Context, entry *queue.Entry) error {
	return a.server.Delete(ctx, unwrap(entry))
}

func (a *Adapter) Disconnect() error {
	return a.server.Disconnect()
}
