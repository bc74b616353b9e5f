package event

import (
	"context"
	"sync"

	"github.com/rbaliyan/safe-event/transport"
)

// Subscription is the handle returned when a listener is registered.
// Unsubscribe is idempotent and safe to call from inside the listener.
type Subscription interface {
	// ID returns the subscription ID
	ID() string
	// Event returns the event name, or the join key for joins
	Event() string
	// Active returns false once the subscription has been removed
	Active() bool
	// Unsubscribe removes every listener owned by the subscription
	Unsubscribe()
}

// subscription owns one or more transport registrations
type subscription struct {
	id    string
	event string

	mu      sync.Mutex
	closed  bool
	handles []transport.Subscription
	cleanup []func()
}

func newSubscription(id, event string) *subscription {
	return &subscription{id: id, event: event}
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Event() string {
	return s.event
}

func (s *subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// attach adds a transport registration. A registration attached after
// Unsubscribe is closed immediately.
func (s *subscription) attach(h transport.Subscription) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = h.Close(context.Background())
		return
	}
	s.handles = append(s.handles, h)
	s.mu.Unlock()
}

// onClose registers fn to run once on Unsubscribe
func (s *subscription) onClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.cleanup = append(s.cleanup, fn)
	s.mu.Unlock()
}

func (s *subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	handles, cleanup := s.handles, s.cleanup
	s.handles, s.cleanup = nil, nil
	s.mu.Unlock()

	for _, h := range handles {
		_ = h.Close(context.Background())
	}
	for _, fn := range cleanup {
		fn()
	}
}

var _ Subscription = (*subscription)(nil)
