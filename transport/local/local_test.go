package local

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/safe-event/transport"
	"github.com/rbaliyan/safe-event/transport/message"
	"go.opentelemetry.io/otel/trace"
)

func testMessage(id, event, correlationID string, payload any) transport.Message {
	return message.NewCorrelated(id, "source", event, payload, correlationID, nil, trace.SpanContext{})
}

func TestNew(t *testing.T) {
	tr := New()
	if tr == nil {
		t.Fatal("expected transport, got nil")
	}
	defer tr.Close(context.Background())

	if !tr.recovery {
		t.Error("expected recovery enabled by default")
	}
}

func TestPublishOrder(t *testing.T) {
	ctx := context.Background()
	tr := New()
	defer tr.Close(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if _, err := tr.Subscribe(ctx, "ordered", func(ctx context.Context, msg transport.Message) {
			got = append(got, i)
		}); err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	n, err := tr.Publish(ctx, "ordered", testMessage("m1", "ordered", "", "x"))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 deliveries, got %d", n)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("delivery order mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishNoListeners(t *testing.T) {
	ctx := context.Background()
	tr := New()
	defer tr.Close(ctx)

	n, err := tr.Publish(ctx, "nobody", testMessage("m1", "nobody", "", nil))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 deliveries, got %d", n)
	}
}

func TestCorrelationFilter(t *testing.T) {
	ctx := context.Background()
	tr := New()
	defer tr.Close(ctx)

	var got []string
	tr.Subscribe(ctx, "reply", func(ctx context.Context, msg transport.Message) {
		got = append(got, msg.ID())
	}, transport.WithCorrelationID("cid-1"))

	tr.Publish(ctx, "reply", testMessage("no-cid", "reply", "", nil))
	tr.Publish(ctx, "reply", testMessage("other", "reply", "cid-2", nil))
	tr.Publish(ctx, "reply", testMessage("match", "reply", "cid-1", nil))

	if diff := cmp.Diff([]string{"match"}, got); diff != "" {
		t.Errorf("filtered delivery mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscriptionCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := New()
	defer tr.Close(ctx)

	calls := 0
	sub, _ := tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) { calls++ })
	other, _ := tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {})

	if err := sub.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sub.Close(ctx); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if tr.Listeners("e") != 1 {
		t.Errorf("expected 1 listener left, got %d", tr.Listeners("e"))
	}

	tr.Publish(ctx, "e", testMessage("m", "e", "", nil))
	if calls != 0 {
		t.Errorf("closed listener invoked %d times", calls)
	}
	other.Close(ctx)
	if tr.Listeners("e") != 0 {
		t.Errorf("expected no listeners, got %d", tr.Listeners("e"))
	}
}

func TestRemoveDuringDispatch(t *testing.T) {
	ctx := context.Background()
	tr := New()
	defer tr.Close(ctx)

	var got []string
	var second transport.Subscription

	first, _ := tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {
		got = append(got, "first")
		// Remove a later sibling before it is reached
		second.Close(ctx)
	})
	second, _ = tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {
		got = append(got, "second")
	})
	var self transport.Subscription
	self, _ = tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {
		got = append(got, "self")
		self.Close(ctx)
	})
	tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {
		got = append(got, "last")
	})

	tr.Publish(ctx, "e", testMessage("m1", "e", "", nil))
	if diff := cmp.Diff([]string{"first", "self", "last"}, got); diff != "" {
		t.Errorf("first dispatch mismatch (-want +got):\n%s", diff)
	}

	got = nil
	tr.Publish(ctx, "e", testMessage("m2", "e", "", nil))
	if diff := cmp.Diff([]string{"first", "last"}, got); diff != "" {
		t.Errorf("second dispatch mismatch (-want +got):\n%s", diff)
	}
	first.Close(ctx)
}

func TestAddDuringDispatch(t *testing.T) {
	ctx := context.Background()
	tr := New()
	defer tr.Close(ctx)

	added := 0
	tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {
		tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {
			added++
		})
	})

	tr.Publish(ctx, "e", testMessage("m1", "e", "", nil))
	if added != 0 {
		t.Errorf("listener added mid-dispatch was invoked %d times", added)
	}
	tr.Publish(ctx, "e", testMessage("m2", "e", "", nil))
	if added != 1 {
		t.Errorf("expected 1 invocation on next dispatch, got %d", added)
	}
}

func TestRecovery(t *testing.T) {
	ctx := context.Background()
	var reported error
	tr := New(WithErrorHandler(func(err error) { reported = err }))
	defer tr.Close(ctx)

	reached := false
	tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {
		panic("boom")
	})
	tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {
		reached = true
	})

	n, err := tr.Publish(ctx, "e", testMessage("m1", "e", "", nil))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	if !reached {
		t.Error("listener after panicking listener was not invoked")
	}
	if !errors.Is(reported, transport.ErrListenerPanic) {
		t.Errorf("expected ErrListenerPanic, got %v", reported)
	}
}

func TestSubscribeNilListener(t *testing.T) {
	tr := New()
	defer tr.Close(context.Background())

	if _, err := tr.Subscribe(context.Background(), "e", nil); !errors.Is(err, transport.ErrNilListener) {
		t.Errorf("expected ErrNilListener, got %v", err)
	}
}

func TestTransportClose(t *testing.T) {
	ctx := context.Background()
	tr := New()

	sub, _ := tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {})

	if err := tr.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Close(ctx); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := tr.Publish(ctx, "e", testMessage("m", "e", "", nil)); !errors.Is(err, transport.ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
	if _, err := tr.Subscribe(ctx, "e", func(ctx context.Context, msg transport.Message) {}); !errors.Is(err, transport.ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
	// Closing a handle after the transport is gone must not panic
	if err := sub.Close(ctx); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	tr := New()

	tr.Subscribe(ctx, "a", func(ctx context.Context, msg transport.Message) {})
	tr.Subscribe(ctx, "a", func(ctx context.Context, msg transport.Message) {})
	tr.Subscribe(ctx, "b", func(ctx context.Context, msg transport.Message) {})

	h := tr.Health(ctx)
	if !h.IsHealthy() {
		t.Fatalf("expected healthy, got %s", h.Status)
	}
	if h.Details["events"] != 2 {
		t.Errorf("expected 2 events, got %v", h.Details["events"])
	}
	if h.Details["listeners"] != 3 {
		t.Errorf("expected 3 listeners, got %v", h.Details["listeners"])
	}

	tr.Close(ctx)
	if h := tr.Health(ctx); h.Status != transport.HealthStatusUnhealthy {
		t.Errorf("expected unhealthy after close, got %s", h.Status)
	}
}
