// Package blackhole implements a queue.Adapter that does not connect to anything.
//
// NextEntry never returns a job; Store, Requeue, Bury and Delete do nothing.
package blackhole

import (
	"context"
	"time"

	"github.com/pixelvide/wq-go/pkg/queue"
)

type Server struct{}

func New() *Server {
	return &Server{}
}

// NextEntry waits for the full timeout (or until ctx is done) and returns nothing.
func (s *Server) NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*queue.Entry, error) {
	if timeout == queue.NoBlock {
		return nil, nil
	}
	if timeout < 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

func (s *Server) Store(ctx context.Context, queueName string, j queue.Job, delay time.Duration) error {
	return nil
}

func (s *Server) Requeue(ctx context.Context, entry *queue.Entry, delay time.Duration, queueName string) error {
	return nil
}

func (s *Server) Bury(ctx context.Context, entry *queue.Entry) error {
	return nil
}

func (s *Server) Delete(ctx context.Context, entry *queue.Entry) error {
	return nil
}

func (s *Server) Disconnect() error {
	return nil
}
