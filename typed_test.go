package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rbaliyan/safe-event/payload"
	"syreclabs.com/go/faker"
)

type user struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

type greeting struct {
	Text string `json:"text" msgpack:"text"`
}

func TestTypedEvent(t *testing.T) {
	ctx := context.Background()
	bus := TestBus()
	defer bus.Close(ctx)

	created := Define[user](bus, "user:created")
	if created.Name() != "user:created" || created.Bus() != bus {
		t.Fatal("typed event not bound to bus")
	}

	var got []user
	sub, err := created.Subscribe(ctx, func(_ context.Context, u user, _ string) {
		got = append(got, u)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	u := user{ID: faker.Lorem().Characters(8), Name: faker.Name().Name()}

	t.Run("typed publish", func(t *testing.T) {
		got = nil
		if err := created.Publish(ctx, u); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		if diff := cmp.Diff([]user{u}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("untyped map payload is converted", func(t *testing.T) {
		got = nil
		_ = bus.Publish(ctx, "user:created", map[string]any{"id": u.ID, "name": u.Name})
		if diff := cmp.Diff([]user{u}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("data wrapper is unwrapped", func(t *testing.T) {
		got = nil
		_ = bus.Publish(ctx, "user:created", payload.Wrap(map[string]any{"id": u.ID, "name": u.Name}))
		if diff := cmp.Diff([]user{u}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestTypedPayloadError(t *testing.T) {
	ctx := context.Background()
	var reported []error
	bus := TestBus(WithErrorHandler(func(err error) { reported = append(reported, err) }))
	defer bus.Close(ctx)

	created := Define[user](bus, "user:created", WithPayloadCodec(payload.JSON{Strict: true}))
	calls := 0
	_, _ = created.Subscribe(ctx, func(context.Context, user, string) { calls++ })

	_ = bus.Publish(ctx, "user:created", map[string]any{"id": "1", "unknown": true})
	if calls != 0 {
		t.Error("handler invoked with invalid payload")
	}
	if len(reported) != 1 || !IsPayloadError(reported[0]) {
		t.Fatalf("expected one payload error, got %v", reported)
	}
	var payloadErr *PayloadError
	if errors.As(reported[0], &payloadErr) && payloadErr.Event != "user:created" {
		t.Errorf("event got:%q", payloadErr.Event)
	}
}

func TestTypedRequest(t *testing.T) {
	ctx := context.Background()
	bus := TestBus()
	defer bus.Close(ctx)

	greet := Define[user](bus, "user:greet")
	greeted := Define[greeting](bus, "user:greeted", WithPayloadCodec(payload.MsgPack{}))

	_, err := Respond(ctx, greet, greeted, func(_ context.Context, u user) (greeting, error) {
		return greeting{Text: "hello " + u.Name}, nil
	})
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}

	name := faker.Name().FirstName()
	reply, err := Request(ctx, greet, user{ID: "1", Name: name}, greeted, WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if reply.Text != "hello "+name {
		t.Errorf("reply got:%q", reply.Text)
	}

	t.Run("typed one-shot", func(t *testing.T) {
		cid := NewID()
		var got []greeting
		_, _ = greeted.SubscribeOnce(ctx, cid, func(_ context.Context, g greeting, _ string) {
			got = append(got, g)
		})
		_ = greeted.Publish(ctx, greeting{Text: "a"}, WithCorrelationID(cid))
		_ = greeted.Publish(ctx, greeting{Text: "b"}, WithCorrelationID(cid))
		if diff := cmp.Diff([]greeting{{Text: "a"}}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPayloadContentType(t *testing.T) {
	ctx := context.Background()

	t.Run("bus codec by content type", func(t *testing.T) {
		bus := TestBus(WithConfig(Config{PayloadContentType: "application/msgpack"}))
		defer bus.Close(ctx)
		if _, ok := bus.Codec().(payload.MsgPack); !ok {
			t.Fatalf("bus codec got:%T, expected payload.MsgPack", bus.Codec())
		}

		greeted := Define[greeting](bus, "user:greeted")
		var got []greeting
		_, _ = greeted.Subscribe(ctx, func(_ context.Context, g greeting, _ string) { got = append(got, g) })
		_ = bus.Publish(ctx, "user:greeted", map[string]any{"text": "hi"})
		if diff := cmp.Diff([]greeting{{Text: "hi"}}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown content type falls back to JSON", func(t *testing.T) {
		bus := TestBus(WithPayloadContentType("application/unknown"))
		defer bus.Close(ctx)
		if _, ok := bus.Codec().(payload.JSON); !ok {
			t.Errorf("bus codec got:%T, expected payload.JSON", bus.Codec())
		}
	})

	t.Run("event option overrides bus codec", func(t *testing.T) {
		bus := TestBus(WithPayloadContentType("application/msgpack"))
		defer bus.Close(ctx)
		ev := Define[user](bus, "user:created", WithContentType("application/json"))
		u, err := ev.Decode(map[string]any{"id": "7", "name": "n"})
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if u.ID != "7" {
			t.Errorf("id got:%q", u.ID)
		}
		if _, ok := ev.codec.(payload.JSON); !ok {
			t.Errorf("event codec got:%T, expected payload.JSON", ev.codec)
		}
	})
}
