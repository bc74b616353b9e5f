// Package message provides the envelope type carried through the dispatch table.
//
// This package is imported by both the transport and the bus packages to avoid
// circular dependencies while providing a unified envelope type.
package message

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Message is an event envelope that travels through the dispatch table
type Message interface {
	// ID returns the unique message identifier
	ID() string
	// Source returns the bus that published this message
	Source() string
	// Event returns the event name the message was published on
	Event() string
	// Payload returns the message payload, untouched by the bus
	Payload() any
	// CorrelationID returns the correlation ID, or "" when the message is uncorrelated
	CorrelationID() string
	// Metadata returns optional key-value metadata
	Metadata() map[string]string
	// Timestamp returns when the message was created
	Timestamp() time.Time
	// Context returns a context with trace information (if available)
	Context() context.Context
}

// message is the default Message implementation
type message struct {
	id            string
	source        string
	event         string
	payload       any
	correlationID string
	metadata      map[string]string
	timestamp     time.Time
	span          trace.SpanContext
}

func (m *message) ID() string                  { return m.id }
func (m *message) Source() string              { return m.source }
func (m *message) Event() string               { return m.event }
func (m *message) Payload() any                { return m.payload }
func (m *message) CorrelationID() string       { return m.correlationID }
func (m *message) Metadata() map[string]string { return m.metadata }
func (m *message) Timestamp() time.Time        { return m.timestamp }
func (m *message) Context() context.Context {
	return trace.ContextWithRemoteSpanContext(context.Background(), m.span)
}

// New creates a new uncorrelated message
func New(id, source, event string, payload any, metadata map[string]string, spanCtx trace.SpanContext) Message {
	return NewFull(id, source, event, payload, "", metadata, spanCtx, time.Now())
}

// NewCorrelated creates a new message tagged with a correlation ID
func NewCorrelated(id, source, event string, payload any, correlationID string, metadata map[string]string, spanCtx trace.SpanContext) Message {
	return NewFull(id, source, event, payload, correlationID, metadata, spanCtx, time.Now())
}

// NewFull creates a message with every field set explicitly.
// A zero timestamp is replaced by the current time.
func NewFull(id, source, event string, payload any, correlationID string, metadata map[string]string, spanCtx trace.SpanContext, ts time.Time) Message {
	if ts.IsZero() {
		ts = time.Now()
	}
	return &message{
		id:            id,
		source:        source,
		event:         event,
		payload:       payload,
		correlationID: correlationID,
		metadata:      metadata,
		timestamp:     ts,
		span:          spanCtx,
	}
}

// Compile-time interface check
var _ Message = (*message)(nil)
