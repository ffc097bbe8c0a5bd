// Package memory implements queue.Adapter on top of in-process storage.
// It is meant for tests and single-process setups: nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pixelvide/wq-go/pkg/queue"
)

// DefaultLease is how long a fetched entry stays reserved.
const DefaultLease = 60 * time.Second

type item struct {
	id          string
	availableAt time.Time
	payload     []byte
}

// Server keeps work queues in memory.
type Server struct {
	mu     sync.Mutex
	queues map[string][]*item
	buried map[string][][]byte
	seq    uint64
	closed bool

	codec        queue.Codec
	lease        time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithCodec sets the codec used to store jobs.
func WithCodec(codec queue.Codec) Option {
	return func(s *Server) { s.codec = codec }
}

// WithLease sets the reservation window for fetched entries.
func WithLease(d time.Duration) Option {
	return func(s *Server) { s.lease = d }
}

// WithClock replaces time.Now, so that tests can move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithPollInterval sets how often a blocking NextEntry re-checks the queues.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) { s.pollInterval = d }
}

// New creates an empty Server.
func New(opts ...Option) *Server {
	s := &Server{
		queues:       make(map[string][]*item),
		buried:       make(map[string][][]byte),
		codec:        queue.DefaultCodec(),
		lease:        DefaultLease,
		pollInterval: 50 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*queue.Entry, error) {
	return queue.Poll(ctx, timeout, s.pollInterval, func(context.Context) (*queue.Entry, error) {
		return s.reserve(queues)
	})
}

func (s *Server) reserve(queues []string) (*queue.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, queue.ErrDisconnected
	}

	now := s.now()
	for _, name := range queues {
		for _, it := range s.queues[name] {
			if it.availableAt.After(now) {
				// delayed or reserved
				continue
			}
			it.availableAt = now.Add(s.lease)
			return queue.DecodeEntry(s.codec, it.payload, name, it.id)
		}
	}
	return nil, nil
}

func (s *Server) Store(ctx context.Context, queueName string, j queue.Job, delay time.Duration) error {
	payload, err := s.codec.Encode(j)
	if err != nil {
		return err
	}
	return s.Push(queueName, payload, delay)
}

// Push stores an already serialized payload.
func (s *Server) Push(queueName string, payload []byte, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return queue.ErrDisconnected
	}
	s.push(queueName, payload, delay)
	return nil
}

func (s *Server) push(queueName string, payload []byte, delay time.Duration) {
	s.seq++
	s.queues[queueName] = append(s.queues[queueName], &item{
		id:          fmt.Sprintf("M%d", s.seq),
		availableAt: s.now().Add(delay),
		payload:     payload,
	})
}

func (s *Server) Requeue(ctx context.Context, entry *queue.Entry, delay time.Duration, queueName string) error {
	payload, err := s.codec.Encode(entry.Job)
	if err != nil {
		return err
	}
	if queueName == "" {
		queueName = entry.Queue
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return queue.ErrDisconnected
	}
	s.push(queueName, payload, delay)
	s.remove(entry)
	return nil
}

func (s *Server) Bury(ctx context.Context, entry *queue.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return queue.ErrDisconnected
	}
	if it := s.remove(entry); it != nil {
		s.buried[entry.Queue] = append(s.buried[entry.Queue], it.payload)
	}
	return nil
}

func (s *Server) Delete(ctx context.Context, entry *queue.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return queue.ErrDisconnected
	}
	s.remove(entry)
	return nil
}

func (s *Server) remove(entry *queue.Entry) *item {
	id, _ := entry.Handle.(string)
	items := s.queues[entry.Queue]
	for i, it := range items {
		if it.id == id {
			s.queues[entry.Queue] = append(items[:i], items[i+1:]...)
			return it
		}
	}
	return nil
}

// Disconnect drops all stored jobs. The Server cannot be used afterwards.
func (s *Server) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queues = nil
	s.buried = nil
	return nil
}

// Len returns the number of stored entries in a queue, including delayed
// and reserved ones but not buried ones.
func (s *Server) Len(queueName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[queueName])
}

// Buried returns the payloads buried from a queue, oldest first.
func (s *Server) Buried(queueName string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.buried[queueName]))
	copy(out, s.buried[queueName])
	return out
}
