// Package local provides the in-process dispatch table.
//
// Publish invokes listeners synchronously on the caller's goroutine, in the
// order they were registered. There is no queue and no buffering:
//
//   - Every envelope is delivered before Publish returns
//   - Listeners may subscribe, unsubscribe or publish from inside a dispatch
//   - Nothing survives a process restart
//
// Each dispatch iterates a snapshot of the listener list. A listener added
// during a dispatch is not invoked for that envelope; a listener removed
// during a dispatch is skipped if it has not been reached yet.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/safe-event/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Transport implements transport.Transport as a name-keyed listener table
type Transport struct {
	status   int32
	mu       sync.RWMutex
	events   map[string][]*subscription // copy-on-write, never mutated in place
	recovery bool
	logger   *slog.Logger
	onError  func(error)

	// Metrics
	droppedCounter   metric.Int64Counter
	recoveredCounter metric.Int64Counter
}

// subscription implements transport.Subscription
type subscription struct {
	id     string
	name   string
	fn     transport.Listener
	opts   *transport.SubscribeOptions
	closed int32
	t      *Transport
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Event() string {
	return s.name
}

func (s *subscription) Close(ctx context.Context) error {
	if atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		s.t.remove(s)
	}
	return nil
}

func (s *subscription) isClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

// New creates a new local dispatch table.
func New(opts ...Option) *Transport {
	o := newOptions(opts...)

	meter := o.meterProvider.Meter("event.transport.local")
	droppedCounter, _ := meter.Int64Counter("event.transport.local.dropped",
		metric.WithDescription("Number of envelopes that reached no listener"),
		metric.WithUnit("{message}"),
	)
	recoveredCounter, _ := meter.Int64Counter("event.transport.local.recovered",
		metric.WithDescription("Number of listener panics recovered"),
		metric.WithUnit("{panic}"),
	)

	return &Transport{
		status:           1,
		events:           make(map[string][]*subscription),
		recovery:         o.recovery,
		logger:           o.logger,
		onError:          o.onError,
		droppedCounter:   droppedCounter,
		recoveredCounter: recoveredCounter,
	}
}

func (t *Transport) isOpen() bool {
	return atomic.LoadInt32(&t.status) == 1
}

// Subscribe registers a listener for an event name
func (t *Transport) Subscribe(ctx context.Context, name string, fn transport.Listener, opts ...transport.SubscribeOption) (transport.Subscription, error) {
	if !t.isOpen() {
		return nil, transport.ErrTransportClosed
	}
	if fn == nil {
		return nil, transport.ErrNilListener
	}

	sub := &subscription{
		id:   transport.NewID(),
		name: name,
		fn:   fn,
		opts: transport.ApplySubscribeOptions(opts...),
		t:    t,
	}

	t.mu.Lock()
	subs := t.events[name]
	next := make([]*subscription, len(subs), len(subs)+1)
	copy(next, subs)
	t.events[name] = append(next, sub)
	t.mu.Unlock()

	t.logger.Debug("added listener", "event", name, "subscriber", sub.id, "correlation_id", sub.opts.CorrelationID)
	return sub, nil
}

// remove drops a subscription from its event's list
func (t *Transport) remove(s *subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := t.events[s.name]
	for i, sub := range subs {
		if sub != s {
			continue
		}
		if len(subs) == 1 {
			delete(t.events, s.name)
		} else {
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			t.events[s.name] = append(next, subs[i+1:]...)
		}
		t.logger.Debug("removed listener", "event", s.name, "subscriber", s.id)
		return
	}
}

// Publish invokes every matching listener for an event name
func (t *Transport) Publish(ctx context.Context, name string, msg transport.Message) (int, error) {
	if !t.isOpen() {
		return 0, transport.ErrTransportClosed
	}

	t.mu.RLock()
	subs := t.events[name]
	t.mu.RUnlock()

	if len(subs) == 0 {
		t.logger.Debug("dropping message, no listeners", "event", name, "msg_id", msg.ID())
		t.recordDropped(ctx, name, "no_listeners")
		return 0, nil
	}

	delivered := 0
	for _, sub := range subs {
		// Removed by an earlier listener of this same dispatch
		if sub.isClosed() {
			continue
		}
		if !sub.opts.Matches(msg.CorrelationID()) {
			continue
		}
		t.deliver(ctx, sub, msg)
		delivered++
	}

	if delivered == 0 {
		t.recordDropped(ctx, name, "filtered")
	}
	return delivered, nil
}

func (t *Transport) deliver(ctx context.Context, sub *subscription, msg transport.Message) {
	if t.recovery {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("%w: event %q subscriber %s: %v", transport.ErrListenerPanic, sub.name, sub.id, r)
				t.logger.Error("listener panic recovered",
					"event", sub.name,
					"subscriber", sub.id,
					"msg_id", msg.ID(),
					"error", r,
					"stack", string(debug.Stack()),
				)
				if t.recoveredCounter != nil {
					t.recoveredCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", sub.name)))
				}
				t.onError(err)
			}
		}()
	}
	sub.fn(ctx, msg)
}

func (t *Transport) recordDropped(ctx context.Context, name, reason string) {
	if t.droppedCounter != nil {
		t.droppedCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("event", name),
				attribute.String("reason", reason),
			))
	}
}

// Listeners returns the number of active registrations for an event name
func (t *Transport) Listeners(name string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events[name])
}

// Close shuts down the transport and removes all registrations
func (t *Transport) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.status, 1, 0) {
		return nil // Already closed
	}

	t.mu.Lock()
	for _, subs := range t.events {
		for _, sub := range subs {
			atomic.StoreInt32(&sub.closed, 1)
		}
	}
	t.events = make(map[string][]*subscription)
	t.mu.Unlock()

	t.logger.Debug("transport closed")
	return nil
}

// Health performs a health check on the local transport
func (t *Transport) Health(ctx context.Context) *transport.HealthCheckResult {
	start := time.Now()

	result := &transport.HealthCheckResult{
		CheckedAt: start,
		Details:   make(map[string]any),
	}

	if !t.isOpen() {
		result.Status = transport.HealthStatusUnhealthy
		result.Message = "transport is closed"
		result.Latency = time.Since(start)
		return result
	}

	t.mu.RLock()
	eventCount := len(t.events)
	var listeners int
	for _, subs := range t.events {
		listeners += len(subs)
	}
	t.mu.RUnlock()

	result.Status = transport.HealthStatusHealthy
	result.Message = "local transport is healthy"
	result.Latency = time.Since(start)
	result.Details["type"] = "local"
	result.Details["events"] = eventCount
	result.Details["listeners"] = listeners

	return result
}

// Compile-time interface checks
var _ transport.Transport = (*Transport)(nil)
var _ transport.HealthChecker = (*Transport)(nil)
var _ transport.Subscription = (*subscription)(nil)
