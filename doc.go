// Package event is an in-process event bus with correlation-aware listeners.
//
// Listeners are registered per event name and invoked synchronously, in
// registration order, on the publisher's goroutine. On top of plain
// publish/subscribe the bus offers three correlation patterns:
//
//   - One-shot: SubscribeOnce fires for the first envelope carrying a given
//     correlation ID, then removes itself.
//   - Join: SubscribeJoin fires once every event of a set has been observed
//     under the same correlation ID, with the latest payload of each.
//   - Request/reply: Request publishes under a fresh correlation ID and waits
//     for the matching reply or a timeout. Respond is the other side.
//
// Basic example:
//
//	bus := event.Init()
//	defer bus.Close(ctx)
//
//	bus.Subscribe(ctx, "user:created", func(ctx context.Context, data any, cid string) {
//	    fmt.Println("user created", data)
//	})
//	bus.Publish(ctx, "user:created", map[string]any{"id": "42"})
//
// Request/reply:
//
//	bus.Respond(ctx, "price:quote", "price:quoted", func(ctx context.Context, data any) (any, error) {
//	    return 9.99, nil
//	})
//	price, err := bus.Request(ctx, "price:quote", "sku-1", "price:quoted", event.WithTimeout(time.Second))
//	if event.IsTimeout(err) {
//	    // no reply in time
//	}
//
// Join:
//
//	bus.SubscribeJoin(ctx, []string{"order:paid", "order:packed"},
//	    func(ctx context.Context, payloads map[string]any, cid string) {
//	        ship(cid, payloads["order:paid"], payloads["order:packed"])
//	    })
//
// Typed events convert payloads with the payload package:
//
//	created := event.Define[User](bus, "user:created")
//	created.Subscribe(ctx, func(ctx context.Context, u User, cid string) {})
//	created.Publish(ctx, User{ID: "42"})
//
// Bus Options:
//   - WithTransport: replace the dispatch table. Default is local.New().
//   - WithTracing: enable/disable OpenTelemetry tracing. Default is true.
//   - WithMetrics: enable/disable OpenTelemetry metrics. Default is true.
//   - WithRecovery: enable/disable panic recovery in listeners. Default is true.
//   - WithDefaultTimeout: Request timeout when the call sets none. Default is DefaultRequestTimeout.
//   - WithStrictJoins: reject a second join over the same set instead of replacing it.
//   - WithCorrelationTTL: evict incomplete join entries. Default keeps them.
//
// Init and Instance manage a process-wide bus. Components that can take the
// bus as a dependency should use NewBus instead.
package event
