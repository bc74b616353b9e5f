// Package transport provides shared types and interfaces for the dispatch table.
//
// A transport routes an envelope to every listener registered for its event
// name. The bus builds correlation, join and request/reply semantics on top of
// this contract. Implementations (local) should import this package rather
// than the parent event package to avoid import cycles.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/safe-event/transport/message"
)

// Transport errors
var (
	ErrTransportClosed = errors.New("transport closed")
	ErrNilListener     = errors.New("listener is nil")
	ErrListenerPanic   = errors.New("listener panicked")
)

// HealthStatus represents the health state of a component
type HealthStatus string

const (
	// HealthStatusHealthy indicates the component is functioning normally
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusDegraded indicates the component is functioning but with issues
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusUnhealthy indicates the component is not functioning
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult contains detailed health information
type HealthCheckResult struct {
	Status     HealthStatus                  `json:"status"`
	Message    string                        `json:"message,omitempty"`
	Latency    time.Duration                 `json:"latency,omitempty"`
	Details    map[string]any                `json:"details,omitempty"`
	Components map[string]*HealthCheckResult `json:"components,omitempty"`
	CheckedAt  time.Time                     `json:"checked_at"`
}

// IsHealthy returns true if the status is healthy
func (h *HealthCheckResult) IsHealthy() bool {
	return h.Status == HealthStatusHealthy
}

// HealthChecker is an optional interface that transports can implement
// to provide health check capabilities for monitoring and readiness probes.
type HealthChecker interface {
	// Health performs a health check and returns the result.
	Health(ctx context.Context) *HealthCheckResult
}

// Listener receives envelopes from the dispatch table.
// It runs synchronously on the publisher's goroutine.
type Listener func(ctx context.Context, msg Message)

// SubscribeOptions configures a registration
type SubscribeOptions struct {
	// CorrelationID restricts delivery to envelopes carrying exactly this
	// correlation ID. Envelopes without a correlation ID never match a
	// non-empty filter. Empty means no filter.
	CorrelationID string
}

// SubscribeOption is a functional option for configuring subscriptions
type SubscribeOption func(*SubscribeOptions)

// WithCorrelationID filters the registration to a single correlation ID.
//
// Example:
//
//	sub, err := t.Subscribe(ctx, "order.paid", listener,
//	    transport.WithCorrelationID(cid))
func WithCorrelationID(id string) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.CorrelationID = id
	}
}

// ApplySubscribeOptions applies functional options to SubscribeOptions
func ApplySubscribeOptions(opts ...SubscribeOption) *SubscribeOptions {
	o := &SubscribeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Matches reports whether an envelope with the given correlation ID passes the filter
func (o *SubscribeOptions) Matches(correlationID string) bool {
	return o.CorrelationID == "" || o.CorrelationID == correlationID
}

// Transport is the name-keyed dispatch table
type Transport interface {
	// Publish invokes every listener registered for name, in registration
	// order, before returning. It reports how many listeners were invoked.
	// Zero listeners is not an error.
	// Returns ErrTransportClosed after Close.
	Publish(ctx context.Context, name string, msg Message) (int, error)

	// Subscribe registers a listener for name.
	//
	// Options:
	//   - WithCorrelationID: only deliver envelopes with this correlation ID
	//
	// Returns ErrTransportClosed after Close.
	Subscribe(ctx context.Context, name string, fn Listener, opts ...SubscribeOption) (Subscription, error)

	// Listeners returns the number of active registrations for name
	Listeners(name string) int

	// Close removes all registrations. Further calls fail with ErrTransportClosed.
	Close(ctx context.Context) error
}

// Subscription is the handle of a single registration
type Subscription interface {
	// ID returns the unique subscription identifier
	ID() string

	// Event returns the event name this subscription listens on
	Event() string

	// Close removes exactly this registration. Closing twice is a no-op.
	Close(ctx context.Context) error
}

// Message is the message interface from the message package
type Message = message.Message

// ID generation
var counter uint64

// NewID generates a new unique ID (random 128-bit UUID)
func NewID() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return strconv.FormatUint(atomic.AddUint64(&counter, 1), 10)
}

// Logger returns a logger with the given component name
func Logger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
