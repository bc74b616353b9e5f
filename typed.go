package event

import (
	"context"

	"github.com/rbaliyan/safe-event/payload"
)

// TypedHandler receives a payload already converted to T
type TypedHandler[T any] func(ctx context.Context, data T, correlationID string)

// Event is a typed view of one event name on a bus. Payloads published
// through it are delivered unchanged to untyped listeners; payloads from
// untyped publishers are converted to T with payload.As before reaching a
// TypedHandler.
type Event[T any] struct {
	bus   *Bus
	name  string
	codec payload.Codec
}

// Define returns a typed view of name on bus
func Define[T any](bus *Bus, name string, opts ...TypedOption) *Event[T] {
	var codec payload.Codec
	if bus != nil {
		codec = bus.codec
	}
	o := newTypedOptions(codec, opts...)
	return &Event[T]{bus: bus, name: name, codec: o.codec}
}

// Name returns the event name
func (e *Event[T]) Name() string {
	return e.name
}

// Bus returns the bus the event publishes to
func (e *Event[T]) Bus() *Bus {
	return e.bus
}

// Publish publishes data on the event
func (e *Event[T]) Publish(ctx context.Context, data T, opts ...PublishOption) error {
	return e.bus.Publish(ctx, e.name, data, opts...)
}

// Subscribe registers a typed handler. Envelopes whose payload cannot be
// converted to T are dropped and reported as *PayloadError.
func (e *Event[T]) Subscribe(ctx context.Context, handler TypedHandler[T], opts ...SubscribeOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	return e.bus.Subscribe(ctx, e.name, e.untyped(handler), opts...)
}

// SubscribeOnce registers a typed one-shot handler for correlationID
func (e *Event[T]) SubscribeOnce(ctx context.Context, correlationID string, handler TypedHandler[T]) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	return e.bus.SubscribeOnce(ctx, e.name, correlationID, e.untyped(handler))
}

// Decode converts a raw payload to T
func (e *Event[T]) Decode(data any) (T, error) {
	v, err := payload.As[T](data, e.codec)
	if err != nil {
		return v, &PayloadError{Event: e.name, Err: err}
	}
	return v, nil
}

func (e *Event[T]) untyped(handler TypedHandler[T]) Handler {
	return func(ctx context.Context, data any, correlationID string) {
		v, err := e.Decode(data)
		if err != nil {
			e.bus.reportError(ctx, "payload conversion failed", err)
			return
		}
		handler(ctx, v, correlationID)
	}
}

// Request publishes data on req and waits for the reply on reply, converted
// to Resp. A reply that cannot be converted returns *PayloadError.
func Request[Req, Resp any](ctx context.Context, req *Event[Req], data Req, reply *Event[Resp], opts ...RequestOption) (Resp, error) {
	var zero Resp
	raw, err := req.bus.Request(ctx, req.name, data, reply.name, opts...)
	if err != nil {
		return zero, err
	}
	return reply.Decode(raw)
}

// Respond answers typed requests on req with replies on reply
func Respond[Req, Resp any](ctx context.Context, req *Event[Req], reply *Event[Resp], fn func(ctx context.Context, data Req) (Resp, error)) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return req.bus.Respond(ctx, req.name, reply.name, func(ctx context.Context, data any) (any, error) {
		v, err := req.Decode(data)
		if err != nil {
			return nil, err
		}
		return fn(ctx, v)
	})
}
