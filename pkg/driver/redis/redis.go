// Package redis implements queue.Adapter on a Redis server.
//
// Every queue is a sorted set of job ids scored by the unix time (in
// milliseconds) at which the job becomes available. Ids come from a counter
// and are zero padded, so jobs sharing a score are served in insertion
// order. Payloads are kept in separate string keys, buried payloads in a
// list per queue:
//
//	<prefix>:seq            STRING id counter
//	<prefix>:queue:<name>   ZSET  id -> available at
//	<prefix>:job:<id>       STRING payload
//	<prefix>:buried:<name>  LIST  payloads
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pixelvide/wq-go/pkg/queue"
)

const (
	DefaultPrefix = "wq"
	DefaultLease  = 60 * time.Second
)

// Picks the first ready id and pushes its score past the lease, so that
// other pollers skip it until the lease runs out.
var reserveScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
	return false
end
local id = ids[1]
local payload = redis.call('GET', ARGV[3] .. id)
if not payload then
	redis.call('ZREM', KEYS[1], id)
	return false
end
redis.call('ZADD', KEYS[1], ARGV[2], id)
return {id, payload}
`)

var buryScript = goredis.NewScript(`
local payload = redis.call('GET', KEYS[2])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('DEL', KEYS[2])
if payload then
	redis.call('RPUSH', KEYS[3], payload)
end
return 1
`)

// Adapter stores work queues in Redis.
type Adapter struct {
	client       goredis.UniversalClient
	prefix       string
	codec        queue.Codec
	lease        time.Duration
	pollInterval time.Duration
	now          func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type Option func(*Adapter)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(a *Adapter) { a.prefix = prefix }
}

func WithCodec(codec queue.Codec) Option {
	return func(a *Adapter) { a.codec = codec }
}

// WithLease sets the reservation window for fetched entries.
func WithLease(d time.Duration) Option {
	return func(a *Adapter) { a.lease = d }
}

// WithClock replaces time.Now for availability and lease computations.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithPollInterval sets how often a blocking NextEntry re-checks the queues.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) { a.pollInterval = d }
}

// New creates an Adapter. The adapter owns client and closes it on Disconnect.
func New(client goredis.UniversalClient, opts ...Option) *Adapter {
	a := &Adapter{
		client:       client,
		prefix:       DefaultPrefix,
		codec:        queue.DefaultCodec(),
		lease:        DefaultLease,
		pollInterval: queue.DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) queueKey(name string) string {
	return a.prefix + ":queue:" + name
}

func (a *Adapter) jobKeyPrefix() string {
	return a.prefix + ":job:"
}

func (a *Adapter) jobKey(id string) string {
	return a.jobKeyPrefix() + id
}

func (a *Adapter) seqKey() string {
	return a.prefix + ":seq"
}

// nextID draws a fresh id. Every write gets one, requeues included, so a
// stale reservation can never touch the copy that replaced it.
func (a *Adapter) nextID(ctx context.Context, op string) (string, error) {
	n, err := a.client.Incr(ctx, a.seqKey()).Result()
	if err != nil {
		return "", a.wrap(op, err)
	}
	return fmt.Sprintf("%020d", n), nil
}

func (a *Adapter) buriedKey(name string) string {
	return a.prefix + ":buried:" + name
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func (a *Adapter) NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*queue.Entry, error) {
	if a.closed.Load() {
		return nil, queue.ErrDisconnected
	}
	return queue.Poll(ctx, timeout, a.pollInterval, func(ctx context.Context) (*queue.Entry, error) {
		for _, name := range queues {
			entry, err := a.reserve(ctx, name)
			if err != nil || entry != nil {
				return entry, err
			}
		}
		return nil, nil
	})
}

func (a *Adapter) reserve(ctx context.Context, name string) (*queue.Entry, error) {
	now := a.now()
	res, err := reserveScript.Run(ctx, a.client, []string{a.queueKey(name)},
		millis(now), millis(now.Add(a.lease)), a.jobKeyPrefix()).Slice()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, a.wrap("reserve", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("redis reserve: unexpected reply %v", res)
	}

	id, _ := res[0].(string)
	payload, _ := res[1].(string)
	return queue.DecodeEntry(a.codec, []byte(payload), name, id)
}

func (a *Adapter) Store(ctx context.Context, queueName string, j queue.Job, delay time.Duration) error {
	payload, err := a.codec.Encode(j)
	if err != nil {
		return err
	}
	return a.put(ctx, "store", queueName, payload, delay, nil)
}

// put writes payload under a fresh id into queueName. When prev is set, the
// entry it was reserved from is removed in the same transaction.
func (a *Adapter) put(ctx context.Context, op, queueName string, payload []byte, delay time.Duration, prev *queue.Entry) error {
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	id, err := a.nextID(ctx, op)
	if err != nil {
		return err
	}
	availableAt := a.now().Add(delay)
	_, err = a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if prev != nil {
			prevID := prev.Handle.(string)
			pipe.ZRem(ctx, a.queueKey(prev.Queue), prevID)
			pipe.Del(ctx, a.jobKey(prevID))
		}
		pipe.Set(ctx, a.jobKey(id), payload, 0)
		pipe.ZAdd(ctx, a.queueKey(queueName), goredis.Z{Score: float64(millis(availableAt)), Member: id})
		return nil
	})
	return a.wrap(op, err)
}

func (a *Adapter) Requeue(ctx context.Context, entry *queue.Entry, delay time.Duration, queueName string) error {
	if _, err := handleOf(entry); err != nil {
		return err
	}
	if queueName == "" {
		queueName = entry.Queue
	}
	payload, err := a.codec.Encode(entry.Job)
	if err != nil {
		return err
	}
	return a.put(ctx, "requeue", queueName, payload, delay, entry)
}

func (a *Adapter) Bury(ctx context.Context, entry *queue.Entry) error {
	id, err := handleOf(entry)
	if err != nil {
		return err
	}
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	keys := []string{a.queueKey(entry.Queue), a.jobKey(id), a.buriedKey(entry.Queue)}
	return a.wrap("bury", buryScript.Run(ctx, a.client, keys, id).Err())
}

func (a *Adapter) Delete(ctx context.Context, entry *queue.Entry) error {
	id, err := handleOf(entry)
	if err != nil {
		return err
	}
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	_, err = a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRem(ctx, a.queueKey(entry.Queue), id)
		pipe.Del(ctx, a.jobKey(id))
		return nil
	})
	return a.wrap("delete", err)
}

// Disconnect closes the Redis client.
func (a *Adapter) Disconnect() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.closeErr = a.client.Close()
	})
	return a.closeErr
}

// Len returns the number of stored entries in a queue, including delayed
// and reserved ones.
func (a *Adapter) Len(ctx context.Context, queueName string) (int64, error) {
	n, err := a.client.ZCard(ctx, a.queueKey(queueName)).Result()
	return n, a.wrap("len", err)
}

// Buried returns the payloads buried from a queue, oldest first.
func (a *Adapter) Buried(ctx context.Context, queueName string) ([][]byte, error) {
	items, err := a.client.LRange(ctx, a.buriedKey(queueName), 0, -1).Result()
	if err != nil {
		return nil, a.wrap("buried", err)
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = []byte(item)
	}
	return out, nil
}

func handleOf(entry *queue.Entry) (string, error) {
	id, ok := entry.Handle.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("redis: entry handle %v was not created by this adapter", entry.Handle)
	}
	return id, nil
}

// wrap maps transport failures to queue.ConnectionError. Error replies
// from the server are returned as plain errors.
func (a *Adapter) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, goredis.ErrClosed) {
		return queue.ErrDisconnected
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var reply goredis.Error
	if errors.As(err, &reply) {
		return fmt.Errorf("redis %s: %w", op, err)
	}
	return queue.NewConnectionError("redis "+op, err)
}
