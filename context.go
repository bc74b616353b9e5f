package event

import (
	"context"
	"log/slog"
	"time"
)

const (
	eventContextKey contextKey = iota
)

// eventContextData is attached to the context each handler receives
type eventContextData struct {
	name          string
	source        string
	eventID       string
	subID         string
	correlationID string
	timestamp     time.Time
	metadata      Metadata
	logger        *slog.Logger
}

// contextKey
type contextKey int

func contextData(ctx context.Context) *eventContextData {
	s, _ := ctx.Value(eventContextKey).(*eventContextData)
	return s
}

// ContextEventID get the id of the envelope being handled
func ContextEventID(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.eventID
	}
	return ""
}

// ContextName get the event name of the envelope being handled
func ContextName(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.name
	}
	return ""
}

// ContextSource get the id of the bus that published the envelope
func ContextSource(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.source
	}
	return ""
}

// ContextCorrelationID get the correlation ID of the envelope being handled
func ContextCorrelationID(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.correlationID
	}
	return ""
}

// ContextTimestamp get the publish time of the envelope being handled
func ContextTimestamp(ctx context.Context) time.Time {
	if s := contextData(ctx); s != nil {
		return s.timestamp
	}
	return time.Time{}
}

// ContextMetadata get envelope metadata
func ContextMetadata(ctx context.Context) Metadata {
	if s := contextData(ctx); s != nil {
		return s.metadata
	}
	return nil
}

// ContextSubscriptionID get the id of the subscription handling the envelope
func ContextSubscriptionID(ctx context.Context) string {
	if s := contextData(ctx); s != nil {
		return s.subID
	}
	return ""
}

// ContextLogger get a logger annotated with the envelope's event, id and
// correlation ID. Falls back to slog.Default outside a handler.
func ContextLogger(ctx context.Context) *slog.Logger {
	if s := contextData(ctx); s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func contextWithInfo(ctx context.Context, msg Message, subID string, l *slog.Logger) context.Context {
	data := &eventContextData{
		eventID:       msg.ID(),
		name:          msg.Event(),
		source:        msg.Source(),
		subID:         subID,
		correlationID: msg.CorrelationID(),
		timestamp:     msg.Timestamp(),
		metadata:      Metadata(msg.Metadata()),
	}
	if l != nil {
		attrs := []any{"event", data.name, "event_id", data.eventID}
		if data.correlationID != "" {
			attrs = append(attrs, "correlation_id", data.correlationID)
		}
		data.logger = l.With(attrs...)
	}
	return context.WithValue(ctx, eventContextKey, data)
}

// NewContext returns a background context carrying the envelope info of ctx.
// Use it to keep envelope data for work that outlives the handler.
func NewContext(ctx context.Context) context.Context {
	if s := contextData(ctx); s != nil {
		return context.WithValue(context.Background(), eventContextKey, s)
	}
	return context.Background()
}
