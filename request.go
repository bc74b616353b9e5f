package event

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Responder computes the reply for a request payload
type Responder func(ctx context.Context, data any) (any, error)

// Request publishes data on name under a fresh correlation ID and waits for
// the first envelope on replyEvent carrying that ID.
//
// The reply listener is armed before the request is published, so a
// responder answering synchronously is observed. Exactly one outcome is
// delivered: the reply payload, a *TimeoutError (errors.Is ErrTimeout) once
// the timeout elapses, ctx.Err() if ctx ends first, or ErrBusClosed. The
// reply listener is removed in every case.
func (b *Bus) Request(ctx context.Context, name string, data any, replyEvent string, opts ...RequestOption) (any, error) {
	if !b.Running() {
		return nil, ErrBusClosed
	}
	o := newRequestOptions(b.defaultTimeout, opts...)
	correlationID := NewID()

	ctx, span := b.tracer.Start(ctx, fmt.Sprintf("%s.request", name),
		trace.WithAttributes(
			attribute.String(spanKeyEventName, name),
			attribute.String(spanKeyReplyEvent, replyEvent),
			attribute.String(spanKeyCorrelationID, correlationID),
			attribute.String(spanKeyEventBus, b.name)),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	replies := make(chan any, 1)
	sub, err := b.SubscribeOnce(ctx, replyEvent, correlationID, func(_ context.Context, reply any, _ string) {
		select {
		case replies <- reply:
		default:
		}
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer sub.Unsubscribe()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()
	start := time.Now()

	if err := b.Publish(ctx, name, data, WithCorrelationID(correlationID), WithMetadata(o.metadata)); err != nil {
		span.RecordError(err)
		return nil, err
	}

	select {
	case reply := <-replies:
		b.metrics.recordRequest(ctx, name, time.Since(start), false)
		return reply, nil
	case <-timer.C:
		// a reply that raced the timer still wins
		select {
		case reply := <-replies:
			b.metrics.recordRequest(ctx, name, time.Since(start), false)
			return reply, nil
		default:
		}
		elapsed := time.Since(start)
		b.metrics.recordRequest(ctx, name, elapsed, true)
		err := &TimeoutError{Event: name, Reply: replyEvent, Timeout: o.timeout, Elapsed: elapsed}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	case <-ctx.Done():
		span.SetStatus(codes.Error, ctx.Err().Error())
		return nil, ctx.Err()
	case <-b.shutdown:
		return nil, ErrBusClosed
	}
}

// Respond answers requests on name: for every correlated envelope it calls fn
// and publishes the result on replyEvent under the same correlation ID.
// Uncorrelated envelopes are ignored. When fn returns an error no reply is
// published and the requester times out.
func (b *Bus) Respond(ctx context.Context, name, replyEvent string, fn Responder) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(ctx, name, func(ctx context.Context, data any, correlationID string) {
		if correlationID == "" {
			ContextLogger(ctx).Debug("responder ignored uncorrelated envelope")
			return
		}
		reply, err := fn(ctx, data)
		if err != nil {
			b.reportError(ctx, "responder failed", fmt.Errorf("respond %q: %w", name, err))
			return
		}
		if err := b.Publish(ctx, replyEvent, reply, WithCorrelationID(correlationID)); err != nil {
			b.reportError(ctx, "reply publish failed", err)
		}
	})
}
