// Package sqs implements queue.Adapter on Amazon SQS.
//
// Every work queue is an SQS queue of the same name. A fetched message stays
// invisible for the lease; buried messages are moved to a companion queue
// named after the work queue plus a suffix ("-buried" by default).
package sqs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/pixelvide/wq-go/pkg/queue"
)

const (
	DefaultLease      = 60 * time.Second
	DefaultBurySuffix = "-buried"

	// SQS limits.
	maxDelay    = 15 * time.Minute
	maxWaitTime = 20 * time.Second
)

// API is the part of the SQS client the adapter uses.
type API interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// message is the handle of entries fetched by this adapter.
type message struct {
	ReceiptHandle string
	Body          string
}

// Adapter stores work queues in SQS.
type Adapter struct {
	client       API
	codec        queue.Codec
	lease        time.Duration
	burySuffix   string
	urlPrefix    string
	pollInterval time.Duration

	mu   sync.Mutex
	urls map[string]string

	closed atomic.Bool
}

type Option func(*Adapter)

func WithCodec(codec queue.Codec) Option {
	return func(a *Adapter) { a.codec = codec }
}

// WithLease sets the visibility timeout of received messages.
func WithLease(d time.Duration) Option {
	return func(a *Adapter) { a.lease = d }
}

func WithBurySuffix(suffix string) Option {
	return func(a *Adapter) { a.burySuffix = suffix }
}

// WithURLPrefix builds queue URLs as prefix + "/" + name instead of asking
// SQS, like Laravel's sqs connection "prefix" setting.
func WithURLPrefix(prefix string) Option {
	return func(a *Adapter) { a.urlPrefix = strings.TrimSuffix(prefix, "/") }
}

// WithPollInterval sets how often several queues are re-checked while
// waiting. A single queue is long-polled instead.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) { a.pollInterval = d }
}

func New(client API, opts ...Option) *Adapter {
	a := &Adapter{
		client:       client,
		codec:        queue.DefaultCodec(),
		lease:        DefaultLease,
		burySuffix:   DefaultBurySuffix,
		pollInterval: time.Second,
		urls:         make(map[string]string),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) queueURL(ctx context.Context, name string) (string, error) {
	if a.urlPrefix != "" {
		return a.urlPrefix + "/" + name, nil
	}

	a.mu.Lock()
	url, ok := a.urls[name]
	a.mu.Unlock()
	if ok {
		return url, nil
	}

	out, err := a.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", wrap("get queue url", err)
	}
	url = aws.ToString(out.QueueUrl)

	a.mu.Lock()
	a.urls[name] = url
	a.mu.Unlock()
	return url, nil
}

func (a *Adapter) NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*queue.Entry, error) {
	if a.closed.Load() {
		return nil, queue.ErrDisconnected
	}
	if len(queues) == 1 && timeout != queue.NoBlock {
		return a.longPoll(ctx, queues[0], timeout)
	}
	return queue.Poll(ctx, timeout, a.pollInterval, func(ctx context.Context) (*queue.Entry, error) {
		for _, name := range queues {
			entry, err := a.receive(ctx, name, 0)
			if err != nil || entry != nil {
				return entry, err
			}
		}
		return nil, nil
	})
}

func (a *Adapter) longPoll(ctx context.Context, name string, timeout time.Duration) (*queue.Entry, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		wait := maxWaitTime
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, nil
			}
			wait = min(remaining, maxWaitTime)
		}

		entry, err := a.receive(ctx, name, seconds(wait))
		if err != nil || entry != nil {
			return entry, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (a *Adapter) receive(ctx context.Context, name string, waitSeconds int32) (*queue.Entry, error) {
	url, err := a.queueURL(ctx, name)
	if err != nil {
		return nil, err
	}

	out, err := a.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: 1,
		VisibilityTimeout:   seconds(a.lease),
		WaitTimeSeconds:     waitSeconds,
	})
	if err != nil {
		return nil, wrap("receive", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]
	handle := message{ReceiptHandle: aws.ToString(msg.ReceiptHandle), Body: aws.ToString(msg.Body)}
	return queue.DecodeEntry(a.codec, []byte(handle.Body), name, handle)
}

func (a *Adapter) Store(ctx context.Context, queueName string, j queue.Job, delay time.Duration) error {
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	payload, err := a.codec.Encode(j)
	if err != nil {
		return err
	}
	return a.send(ctx, queueName, string(payload), delay)
}

func (a *Adapter) send(ctx context.Context, queueName, body string, delay time.Duration) error {
	url, err := a.queueURL(ctx, queueName)
	if err != nil {
		return err
	}
	_, err = a.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(url),
		MessageBody:  aws.String(body),
		DelaySeconds: seconds(min(max(delay, 0), maxDelay)),
	})
	return wrap("send", err)
}

// Requeue sends the re-encoded job and deletes the received message.
// Delays longer than 15 minutes are shortened to what SQS allows.
func (a *Adapter) Requeue(ctx context.Context, entry *queue.Entry, delay time.Duration, queueName string) error {
	msg, err := messageOf(entry)
	if err != nil {
		return err
	}
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	if queueName == "" {
		queueName = entry.Queue
	}
	payload, err := a.codec.Encode(entry.Job)
	if err != nil {
		return err
	}
	if err := a.send(ctx, queueName, string(payload), delay); err != nil {
		return err
	}
	return a.remove(ctx, entry.Queue, msg)
}

// Bury moves the message body unchanged to the bury queue.
func (a *Adapter) Bury(ctx context.Context, entry *queue.Entry) error {
	msg, err := messageOf(entry)
	if err != nil {
		return err
	}
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	if err := a.send(ctx, entry.Queue+a.burySuffix, msg.Body, 0); err != nil {
		return err
	}
	return a.remove(ctx, entry.Queue, msg)
}

func (a *Adapter) Delete(ctx context.Context, entry *queue.Entry) error {
	msg, err := messageOf(entry)
	if err != nil {
		return err
	}
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	return a.remove(ctx, entry.Queue, msg)
}

func (a *Adapter) remove(ctx context.Context, queueName string, msg message) error {
	url, err := a.queueURL(ctx, queueName)
	if err != nil {
		return err
	}
	_, err = a.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	return wrap("delete", err)
}

// Disconnect marks the adapter as closed. The SQS client holds no
// connection that needs closing.
func (a *Adapter) Disconnect() error {
	a.closed.Store(true)
	return nil
}

func messageOf(entry *queue.Entry) (message, error) {
	msg, ok := entry.Handle.(message)
	if !ok {
		return message{}, fmt.Errorf("sqs: entry handle %v was not created by this adapter", entry.Handle)
	}
	return msg, nil
}

func seconds(d time.Duration) int32 {
	return int32((d + time.Second - 1) / time.Second)
}

// wrap treats every failure without an HTTP response as a connection error.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return fmt.Errorf("sqs %s: %w", op, err)
	}
	return queue.NewConnectionError("sqs "+op, err)
}
