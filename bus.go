package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/safe-event/payload"
	"github.com/rbaliyan/safe-event/transport"
	"github.com/rbaliyan/safe-event/transport/local"
	"github.com/rbaliyan/safe-event/transport/message"
	"go.opentelemetry.io/otel/attribute"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

const (
	busRunning = 1
	busStopped = 0
)

// DefaultBusName is the name of the bus created by Init
var DefaultBusName = "event-bus"

// Message is the envelope delivered through the bus
type Message = transport.Message

// Handler receives the payload and correlation ID of a delivered envelope.
// The correlation ID is empty for uncorrelated publishes.
type Handler func(ctx context.Context, data any, correlationID string)

// StatusCode represents the health state of the bus
type StatusCode string

const (
	// StatusHealthy indicates the bus is functioning normally
	StatusHealthy StatusCode = "healthy"
	// StatusDegraded indicates the bus is functioning but with issues
	StatusDegraded StatusCode = "degraded"
	// StatusUnhealthy indicates the bus is not functioning
	StatusUnhealthy StatusCode = "unhealthy"
)

// Status contains detailed status information for the bus
type Status struct {
	Code       StatusCode         `json:"status"`
	Message    string             `json:"message,omitempty"`
	Latency    time.Duration      `json:"latency,omitempty"`
	Details    map[string]any     `json:"details,omitempty"`
	Components map[string]*Status `json:"components,omitempty"`
	CheckedAt  time.Time          `json:"checked_at"`
}

// IsHealthy returns true if the status code is healthy
func (s *Status) IsHealthy() bool {
	return s.Code == StatusHealthy
}

// Bus is an in-process publish/subscribe hub with correlation-aware
// listeners. It owns the dispatch table (its transport), the correlation
// buffer used by joins and the table of armed join groups.
//
// All methods are safe for concurrent use. Handlers run synchronously on the
// publisher's goroutine, in subscription order, and never under a bus lock.
type Bus struct {
	status         int32
	id             string
	name           string
	transport      transport.Transport
	logger         *slog.Logger
	tracer         trace.Tracer
	metrics        *busMetrics
	defaultTimeout time.Duration
	strictJoins    bool
	correlationTTL time.Duration
	codec          payload.Codec
	onError        func(error)

	// shutdown is closed by Close to release in-flight requests
	shutdown chan struct{}

	// mu guards buffer and groups
	mu      sync.Mutex
	buffer  map[string]*correlationEntry
	groups  map[string]*joinGroup
	sweeper rate.Sometimes
	ignored rate.Sometimes
}

// NewBus creates a bus. Without WithTransport it dispatches through a
// local.Transport configured from the bus options.
func NewBus(name string, opts ...Option) *Bus {
	o := newBusOptions(opts...)
	if name == "" {
		name = DefaultBusName
	}

	b := &Bus{
		status:         busRunning,
		id:             NewID(),
		name:           name,
		logger:         o.logger.With("component", "bus", "bus", name),
		metrics:        newBusMetrics(name, o.meterProvider, o.metricsEnabled),
		defaultTimeout: o.defaultTimeout,
		strictJoins:    o.strictJoins,
		correlationTTL: o.correlationTTL,
		onError:        o.onError,
		shutdown:       make(chan struct{}),
		buffer:         make(map[string]*correlationEntry),
		groups:         make(map[string]*joinGroup),
		ignored:        rate.Sometimes{First: 1, Interval: time.Minute},
	}

	if o.tracingEnabled {
		b.tracer = o.tracerProvider.Tracer(name)
	} else {
		b.tracer = noop.NewTracerProvider().Tracer(name)
	}

	b.codec = payload.Default()
	if o.contentType != "" {
		if c, ok := payload.Get(o.contentType); ok {
			b.codec = c
		} else {
			b.logger.Warn("unknown payload content type, using JSON", "content_type", o.contentType, "known", payload.ContentTypes())
		}
	}

	if o.correlationTTL > 0 {
		b.sweeper = rate.Sometimes{Interval: o.correlationTTL / 2}
	}

	b.transport = o.transport
	if b.transport == nil {
		localOpts := []local.Option{
			local.WithRecovery(o.recoveryEnabled),
			local.WithLogger(o.logger),
			local.WithErrorHandler(o.onError),
		}
		if o.metricsEnabled {
			localOpts = append(localOpts, local.WithMeterProvider(o.meterProvider))
		} else {
			localOpts = append(localOpts, local.WithMeterProvider(metricnoop.NewMeterProvider()))
		}
		b.transport = local.New(localOpts...)
	}

	b.logger.Debug("bus created", "id", b.id)
	return b
}

// ID returns the bus instance ID
func (b *Bus) ID() string {
	return b.id
}

// Name returns the bus name
func (b *Bus) Name() string {
	return b.name
}

// Running returns true until Close is called
func (b *Bus) Running() bool {
	return atomic.LoadInt32(&b.status) == busRunning
}

// Transport returns the dispatch table used by the bus
func (b *Bus) Transport() transport.Transport {
	return b.transport
}

// Codec returns the codec typed events on the bus use by default
func (b *Bus) Codec() payload.Codec {
	return b.codec
}

// Logger returns the bus logger
func (b *Bus) Logger() *slog.Logger {
	return b.logger
}

// Listeners returns the number of active listeners for an event name,
// including one-shot and join listeners.
func (b *Bus) Listeners(name string) int {
	return b.transport.Listeners(name)
}

// Publish delivers data to every listener registered for name at the moment
// of the call, synchronously and in registration order. Listeners added while
// dispatching are not invoked for this publish. Listeners removed while
// dispatching are skipped if not yet reached.
//
// Publishing with no listeners is not an error. The only error is ErrBusClosed.
func (b *Bus) Publish(ctx context.Context, name string, data any, opts ...PublishOption) error {
	if !b.Running() {
		return ErrBusClosed
	}
	o := newPublishOptions(opts...)
	eventID := NewID()

	attrs := []attribute.KeyValue{
		attribute.String(spanKeyEventID, eventID),
		attribute.String(spanKeyEventSource, b.id),
		attribute.String(spanKeyEventBus, b.name),
		attribute.String(spanKeyEventName, name),
	}
	if o.correlationID != "" {
		attrs = append(attrs, attribute.String(spanKeyCorrelationID, o.correlationID))
	}
	ctx, span := b.tracer.Start(ctx, fmt.Sprintf("%s.publish", name),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	b.metrics.recordPublished(ctx, name)

	msg := message.NewFull(eventID, b.id, name, data, o.correlationID, o.metadata, span.SpanContext(), time.Now())
	n, err := b.transport.Publish(ctx, name, msg)
	if err != nil {
		if errors.Is(err, transport.ErrTransportClosed) {
			return ErrBusClosed
		}
		return err
	}
	span.SetAttributes(attribute.Int("event.listeners", n))
	return nil
}

// Subscribe registers handler for every future envelope named name. With
// ForCorrelation the handler only sees envelopes carrying that correlation ID.
// The subscription is removed by Unsubscribe or when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, name string, handler Handler, opts ...SubscribeOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	o := newSubscribeOptions(opts...)
	sub := newSubscription(NewID(), name)
	if err := b.attach(ctx, sub, name, handler, o.correlationID); err != nil {
		return nil, err
	}
	b.bindContext(ctx, sub)
	return sub, nil
}

// attach subscribes a handler on the transport and adds the handle to sub
func (b *Bus) attach(ctx context.Context, sub *subscription, name string, handler Handler, correlationID string) error {
	if !b.Running() {
		return ErrBusClosed
	}
	var tOpts []transport.SubscribeOption
	if correlationID != "" {
		tOpts = append(tOpts, transport.WithCorrelationID(correlationID))
	}
	handle, err := b.transport.Subscribe(context.WithoutCancel(ctx), name, b.listener(sub.id, handler), tOpts...)
	if err != nil {
		if errors.Is(err, transport.ErrTransportClosed) {
			return ErrBusClosed
		}
		return err
	}
	sub.attach(handle)
	b.metrics.recordSubscribed(ctx, name)
	return nil
}

// bindContext removes sub when ctx is cancelled
func (b *Bus) bindContext(ctx context.Context, sub *subscription) {
	if ctx.Done() == nil {
		return
	}
	stop := context.AfterFunc(ctx, sub.Unsubscribe)
	sub.onClose(func() { stop() })
}

// listener adapts a Handler to the transport, adding envelope info to the
// context and a consumer span per delivery.
func (b *Bus) listener(subID string, handler Handler) transport.Listener {
	return func(ctx context.Context, msg transport.Message) {
		ctx = contextWithInfo(ctx, msg, subID, b.logger)
		ctx, span := b.tracer.Start(ctx, fmt.Sprintf("%s.subscribe", msg.Event()),
			trace.WithAttributes(
				attribute.String(spanKeyEventID, msg.ID()),
				attribute.String(spanKeyEventSource, msg.Source()),
				attribute.String(spanKeyEventName, msg.Event()),
				attribute.String(spanKeyEventSubscriptionID, subID)),
			trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		b.metrics.recordDelivered(ctx, msg.Event())
		handler(ctx, msg.Payload(), msg.CorrelationID())
	}
}

// Close stops the bus: in-flight requests fail with ErrBusClosed, every
// listener is removed and the correlation buffer is dropped. Close is
// idempotent.
func (b *Bus) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&b.status, busRunning, busStopped) {
		return nil
	}
	close(b.shutdown)

	b.mu.Lock()
	pending := len(b.buffer)
	clear(b.buffer)
	clear(b.groups)
	b.mu.Unlock()

	b.logger.Debug("bus closed", "pending_correlations", pending)
	return b.transport.Close(ctx)
}

// Status returns detailed status information about the bus and its transport.
// If the transport implements HealthChecker, its status is included.
func (b *Bus) Status(ctx context.Context) *Status {
	result := &Status{
		CheckedAt:  time.Now(),
		Details:    make(map[string]any),
		Components: make(map[string]*Status),
	}
	result.Details["bus_name"] = b.name

	if !b.Running() {
		result.Code = StatusUnhealthy
		result.Message = "bus is closed"
		return result
	}

	b.mu.Lock()
	result.Details["pending_correlations"] = len(b.buffer)
	result.Details["joins"] = len(b.groups)
	b.mu.Unlock()

	if hc, ok := b.transport.(transport.HealthChecker); ok {
		transportHealth := hc.Health(ctx)
		result.Components["transport"] = convertTransportStatus(transportHealth)

		switch transportHealth.Status {
		case transport.HealthStatusUnhealthy:
			result.Code = StatusUnhealthy
			result.Message = "transport is unhealthy"
		case transport.HealthStatusDegraded:
			result.Code = StatusDegraded
			result.Message = "transport is degraded"
		default:
			result.Code = StatusHealthy
			result.Message = "bus is healthy"
		}
	} else {
		result.Code = StatusHealthy
		result.Message = "bus is healthy (transport health not available)"
	}

	return result
}

// Health performs a health check suitable for health probes.
// Returns nil if the bus is healthy, or an error describing the issue.
func (b *Bus) Health(ctx context.Context) error {
	status := b.Status(ctx)
	if status.Code == StatusUnhealthy {
		return errors.New(status.Message)
	}
	return nil
}

// convertTransportStatus converts transport.HealthCheckResult to bus Status
func convertTransportStatus(th *transport.HealthCheckResult) *Status {
	if th == nil {
		return nil
	}
	return &Status{
		Code:      StatusCode(th.Status),
		Message:   th.Message,
		Latency:   th.Latency,
		Details:   th.Details,
		CheckedAt: th.CheckedAt,
	}
}

// reportError logs err and passes it to the configured error handler
func (b *Bus) reportError(ctx context.Context, msg string, err error) {
	ContextLogger(ctx).Error(msg, "error", err)
	b.onError(err)
}
