package event

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"syreclabs.com/go/faker"
)

func init() {
	faker.Seed(time.Now().UnixNano())
}

const waitTimeout = 200 * time.Millisecond

func TestPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	bus := TestBus()
	defer bus.Close(ctx)

	t.Run("delivers payload and empty correlation", func(t *testing.T) {
		rec := NewRecorder()
		sub, err := bus.Subscribe(ctx, "user:created", rec.Handler())
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		data := faker.Lorem().String()
		if err := bus.Publish(ctx, "user:created", data); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		want := []HandlerCall{{Event: "user:created", Data: data}}
		if diff := cmp.Diff(want, rec.Calls()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no listeners is not an error", func(t *testing.T) {
		if err := bus.Publish(ctx, "nobody:listens", 1); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("registration order", func(t *testing.T) {
		var order []int
		for i := range 5 {
			sub, err := bus.Subscribe(ctx, "ordered", func(context.Context, any, string) {
				order = append(order, i)
			})
			if err != nil {
				t.Fatalf("subscribe failed: %v", err)
			}
			defer sub.Unsubscribe()
		}
		if err := bus.Publish(ctx, "ordered", nil); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, order); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("correlation and metadata reach the handler", func(t *testing.T) {
		cid := NewID()
		md := NewMetadata().Set("tenant", faker.Lorem().Word())
		var gotCID, gotCtxCID string
		var gotMD Metadata
		sub, _ := bus.Subscribe(ctx, "with:meta", func(ctx context.Context, _ any, correlationID string) {
			gotCID = correlationID
			gotCtxCID = ContextCorrelationID(ctx)
			gotMD = ContextMetadata(ctx)
			if ContextEventID(ctx) == "" {
				t.Error("event id is empty")
			}
			if source := ContextSource(ctx); source != bus.ID() {
				t.Errorf("source is wrong got:%s, expected:%s", source, bus.ID())
			}
			if ContextSubscriptionID(ctx) == "" {
				t.Error("subscription id is empty")
			}
		})
		defer sub.Unsubscribe()

		if err := bus.Publish(ctx, "with:meta", 1, WithCorrelationID(cid), WithMetadata(md)); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		if gotCID != cid || gotCtxCID != cid {
			t.Errorf("correlation got:%q/%q, expected:%q", gotCID, gotCtxCID, cid)
		}
		if diff := cmp.Diff(md, gotMD); diff != "" {
			t.Errorf("metadata mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ForCorrelation filters", func(t *testing.T) {
		rec := NewRecorder()
		cid := NewID()
		sub, _ := bus.Subscribe(ctx, "filtered", rec.Handler(), ForCorrelation(cid))
		defer sub.Unsubscribe()

		_ = bus.Publish(ctx, "filtered", 1)
		_ = bus.Publish(ctx, "filtered", 2, WithCorrelationID(NewID()))
		_ = bus.Publish(ctx, "filtered", 3, WithCorrelationID(cid))

		want := []HandlerCall{{Event: "filtered", Data: 3, CorrelationID: cid}}
		if diff := cmp.Diff(want, rec.Calls()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nil handler", func(t *testing.T) {
		if _, err := bus.Subscribe(ctx, "x", nil); !errors.Is(err, ErrNilHandler) {
			t.Errorf("expected ErrNilHandler, got %v", err)
		}
	})
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	bus := TestBus()
	defer bus.Close(ctx)

	t.Run("idempotent", func(t *testing.T) {
		rec := NewRecorder()
		sub, _ := bus.Subscribe(ctx, "gone", rec.Handler())
		sub.Unsubscribe()
		sub.Unsubscribe()
		if sub.Active() {
			t.Error("subscription still active")
		}
		_ = bus.Publish(ctx, "gone", 1)
		if rec.Count() != 0 {
			t.Errorf("expected no calls, got %d", rec.Count())
		}
		if n := bus.Listeners("gone"); n != 0 {
			t.Errorf("expected 0 listeners, got %d", n)
		}
	})

	t.Run("removed during dispatch is skipped", func(t *testing.T) {
		rec := NewRecorder()
		var second Subscription
		first, _ := bus.Subscribe(ctx, "mid", func(context.Context, any, string) {
			second.Unsubscribe()
		})
		defer first.Unsubscribe()
		second, _ = bus.Subscribe(ctx, "mid", rec.Handler())

		_ = bus.Publish(ctx, "mid", 1)
		if rec.Count() != 0 {
			t.Errorf("removed listener invoked %d times", rec.Count())
		}
	})

	t.Run("added during dispatch is not invoked", func(t *testing.T) {
		rec := NewRecorder()
		var added []Subscription
		sub, _ := bus.Subscribe(ctx, "grow", func(context.Context, any, string) {
			s, _ := bus.Subscribe(ctx, "grow", rec.Handler())
			added = append(added, s)
		})
		_ = bus.Publish(ctx, "grow", 1)
		sub.Unsubscribe()
		if rec.Count() != 0 {
			t.Errorf("listener added mid-dispatch invoked %d times", rec.Count())
		}
		_ = bus.Publish(ctx, "grow", 2)
		if rec.Count() != 1 {
			t.Errorf("expected 1 call on next publish, got %d", rec.Count())
		}
		for _, s := range added {
			s.Unsubscribe()
		}
	})

	t.Run("context cancel removes subscription", func(t *testing.T) {
		subCtx, cancel := context.WithCancel(ctx)
		rec := NewRecorder()
		sub, _ := bus.Subscribe(subCtx, "scoped", rec.Handler())
		cancel()

		deadline := time.Now().Add(waitTimeout)
		for sub.Active() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if sub.Active() {
			t.Fatal("subscription still active after cancel")
		}
		_ = bus.Publish(ctx, "scoped", 1)
		if rec.Count() != 0 {
			t.Errorf("expected no calls, got %d", rec.Count())
		}
	})
}

func TestRecovery(t *testing.T) {
	ctx := context.Background()
	var reported []error
	bus := NewBus("recovering", WithTracing(false), WithMetrics(false),
		WithErrorHandler(func(err error) { reported = append(reported, err) }))
	defer bus.Close(ctx)

	rec := NewRecorder()
	s1, _ := bus.Subscribe(ctx, "boom", func(context.Context, any, string) { panic("boom") })
	s2, _ := bus.Subscribe(ctx, "boom", rec.Handler())
	defer s1.Unsubscribe()
	defer s2.Unsubscribe()

	if err := bus.Publish(ctx, "boom", 1); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if rec.Count() != 1 {
		t.Errorf("listener after panic not invoked")
	}
	if len(reported) != 1 {
		t.Errorf("expected 1 reported error, got %d", len(reported))
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	bus := TestBus()

	sub, _ := bus.Subscribe(ctx, "a", func(context.Context, any, string) {})
	if err := bus.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := bus.Close(ctx); err != nil {
		t.Errorf("second close failed: %v", err)
	}
	if bus.Running() {
		t.Error("bus still running")
	}
	sub.Unsubscribe()

	if err := bus.Publish(ctx, "a", 1); !errors.Is(err, ErrBusClosed) {
		t.Errorf("publish: expected ErrBusClosed, got %v", err)
	}
	if _, err := bus.Subscribe(ctx, "a", func(context.Context, any, string) {}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("subscribe: expected ErrBusClosed, got %v", err)
	}
	if _, err := bus.Request(ctx, "a", 1, "b"); !errors.Is(err, ErrBusClosed) {
		t.Errorf("request: expected ErrBusClosed, got %v", err)
	}
	if err := bus.Health(ctx); err == nil {
		t.Error("expected closed bus to be unhealthy")
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	bus := TestBus()
	defer bus.Close(ctx)

	for i := range 3 {
		sub, _ := bus.Subscribe(ctx, fmt.Sprintf("status:%d", i), func(context.Context, any, string) {})
		defer sub.Unsubscribe()
	}
	status := bus.Status(ctx)
	if !status.IsHealthy() {
		t.Fatalf("expected healthy, got %s: %s", status.Code, status.Message)
	}
	tr := status.Components["transport"]
	if tr == nil {
		t.Fatal("missing transport component")
	}
	if got := tr.Details["listeners"]; got != 3 {
		t.Errorf("listeners got:%v, expected:3", got)
	}
	if err := bus.Health(ctx); err != nil {
		t.Errorf("health: %v", err)
	}
}

func TestRecordingTransport(t *testing.T) {
	ctx := context.Background()
	rt := NewRecordingTransport(nil)
	bus := TestBus(WithTransport(rt))
	defer bus.Close(ctx)

	sub, _ := bus.Subscribe(ctx, "rec", func(context.Context, any, string) {})
	defer sub.Unsubscribe()

	n := faker.RandomInt(1, 10)
	for i := range n {
		_ = bus.Publish(ctx, "rec", i)
	}
	_ = bus.Publish(ctx, "other", 0)

	if rt.Count() != n+1 {
		t.Errorf("count got:%d, expected:%d", rt.Count(), n+1)
	}
	got := rt.MessagesFor("rec")
	if len(got) != n {
		t.Fatalf("messages for rec got:%d, expected:%d", len(got), n)
	}
	if got[0].Listeners != 1 || got[0].Message.Payload() != 0 {
		t.Errorf("unexpected first message %+v", got[0])
	}
	rt.Reset()
	if rt.Count() != 0 {
		t.Error("reset did not clear messages")
	}
}
