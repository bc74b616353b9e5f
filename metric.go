package event

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names recorded by the bus
const (
	MetricPublished        = "event.published"
	MetricDelivered        = "event.delivered"
	MetricSubscribed       = "event.subscribed"
	MetricJoinCompleted    = "event.join.completed"
	MetricRequestCompleted = "event.request.completed"
	MetricRequestTimeout   = "event.request.timeout"
	MetricRequestLatency   = "event.request.latency_ms"
)

// busMetrics holds the bus instruments. A bus with metrics disabled uses
// instruments from a noop provider.
type busMetrics struct {
	published        metric.Int64Counter
	delivered        metric.Int64Counter
	subscribed       metric.Int64Counter
	joinCompleted    metric.Int64Counter
	requestCompleted metric.Int64Counter
	requestTimeout   metric.Int64Counter
	requestLatency   metric.Float64Histogram
}

func newBusMetrics(name string, mp metric.MeterProvider, enabled bool) *busMetrics {
	if !enabled || mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(name)
	m := &busMetrics{}
	m.published, _ = meter.Int64Counter(MetricPublished,
		metric.WithDescription("Total number of events published"))
	m.delivered, _ = meter.Int64Counter(MetricDelivered,
		metric.WithDescription("Total number of envelopes delivered to handlers"))
	m.subscribed, _ = meter.Int64Counter(MetricSubscribed,
		metric.WithDescription("Total number of subscriptions"))
	m.joinCompleted, _ = meter.Int64Counter(MetricJoinCompleted,
		metric.WithDescription("Total number of completed joins"))
	m.requestCompleted, _ = meter.Int64Counter(MetricRequestCompleted,
		metric.WithDescription("Total number of requests answered"))
	m.requestTimeout, _ = meter.Int64Counter(MetricRequestTimeout,
		metric.WithDescription("Total number of requests that timed out"))
	m.requestLatency, _ = meter.Float64Histogram(MetricRequestLatency,
		metric.WithDescription("Request round trip latency"),
		metric.WithUnit("ms"))
	return m
}

func eventAttr(name string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("event", name))
}

func (m *busMetrics) recordPublished(ctx context.Context, name string) {
	m.published.Add(ctx, 1, eventAttr(name))
}

func (m *busMetrics) recordDelivered(ctx context.Context, name string) {
	m.delivered.Add(ctx, 1, eventAttr(name))
}

func (m *busMetrics) recordSubscribed(ctx context.Context, name string) {
	m.subscribed.Add(ctx, 1, eventAttr(name))
}

func (m *busMetrics) recordJoin(ctx context.Context, key string) {
	m.joinCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("join", key)))
}

func (m *busMetrics) recordRequest(ctx context.Context, name string, elapsed time.Duration, timedOut bool) {
	if timedOut {
		m.requestTimeout.Add(ctx, 1, eventAttr(name))
	} else {
		m.requestCompleted.Add(ctx, 1, eventAttr(name))
	}
	m.requestLatency.Record(ctx, float64(elapsed)/float64(time.Millisecond), eventAttr(name))
}
