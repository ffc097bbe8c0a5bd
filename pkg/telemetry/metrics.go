package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pixelvide/wq-go/pkg/processor"
	"github.com/pixelvide/wq-go/pkg/queue"
)

const meterName = "github.com/pixelvide/wq-go"

// MetricsHooks counts job outcomes per queue:
//
//   - wq.jobs.processed (Int64Counter): attributes queue, outcome
//     ("success", "requeued", "failed", "expired")
//   - wq.polls.empty (Int64Counter): polls that found no job
//   - wq.jobs.requeue_delay (Float64Histogram): retry delays in seconds
type MetricsHooks struct {
	processor.NopHooks

	processed metric.Int64Counter
	empty     metric.Int64Counter
	delay     metric.Float64Histogram
}

// NewMetricsHooks creates hooks using the global MeterProvider.
func NewMetricsHooks() *MetricsHooks {
	return NewMetricsHooksWithMeter(otel.Meter(meterName))
}

// NewMetricsHooksWithMeter creates hooks using meter.
func NewMetricsHooksWithMeter(meter metric.Meter) *MetricsHooks {
	// Instrument errors leave noop instruments behind.
	processed, _ := meter.Int64Counter("wq.jobs.processed",
		metric.WithDescription("Jobs finalized by the processor"),
		metric.WithUnit("{job}"),
	)
	empty, _ := meter.Int64Counter("wq.polls.empty",
		metric.WithDescription("Polls that found no job"),
		metric.WithUnit("{poll}"),
	)
	delay, _ := meter.Float64Histogram("wq.jobs.requeue_delay",
		metric.WithDescription("Delay of re-queued jobs"),
		metric.WithUnit("s"),
	)
	return &MetricsHooks{processed: processed, empty: empty, delay: delay}
}

func (m *MetricsHooks) record(ctx context.Context, entry *queue.Entry, outcome string) {
	m.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", entry.Queue),
		attribute.String("outcome", outcome),
	))
}

func (m *MetricsHooks) NoJobAvailable(ctx context.Context, queues []string) {
	m.empty.Add(ctx, 1, metric.WithAttributes(attribute.StringSlice("queues", queues)))
}

func (m *MetricsHooks) Succeeded(ctx context.Context, entry *queue.Entry) {
	m.record(ctx, entry, "success")
}

func (m *MetricsHooks) Expired(ctx context.Context, entry *queue.Entry) {
	m.record(ctx, entry, "expired")
}

func (m *MetricsHooks) WillRequeue(ctx context.Context, entry *queue.Entry, delay time.Duration, _ error) {
	m.record(ctx, entry, "requeued")
	m.delay.Record(ctx, delay.Seconds(), metric.WithAttributes(attribute.String("queue", entry.Queue)))
}

func (m *MetricsHooks) Failed(ctx context.Context, entry *queue.Entry, _ error) {
	m.record(ctx, entry, "failed")
}
