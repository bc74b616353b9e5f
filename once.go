package event

import (
	"context"
	"sync/atomic"
)

// SubscribeOnce registers handler for the first envelope named name that
// carries correlationID. The listener removes itself before handler runs, so
// handler is invoked at most once even if it publishes the same event again.
//
// An empty correlationID returns ErrCorrelationRequired. The subscription can
// be removed before it fires with Unsubscribe or by cancelling ctx.
func (b *Bus) SubscribeOnce(ctx context.Context, name, correlationID string, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if correlationID == "" {
		return nil, ErrCorrelationRequired
	}

	sub := newSubscription(NewID(), name)
	var fired atomic.Bool
	once := func(ctx context.Context, data any, cid string) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		sub.Unsubscribe()
		handler(ctx, data, cid)
	}

	if err := b.attach(ctx, sub, name, once, correlationID); err != nil {
		return nil, err
	}
	b.bindContext(ctx, sub)
	return sub, nil
}
