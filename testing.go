package event

import (
	"context"
	"sync"
	"time"

	"github.com/rbaliyan/safe-event/transport"
	"github.com/rbaliyan/safe-event/transport/local"
)

// TestBus creates a new bus configured for testing.
// Recovery, tracing and metrics are disabled. Extra options are applied last.
func TestBus(opts ...Option) *Bus {
	base := []Option{
		WithTransport(local.New(local.WithRecovery(false))),
		WithRecovery(false),
		WithTracing(false),
		WithMetrics(false),
	}
	return NewBus("test-bus", append(base, opts...)...)
}

// RecordedMessage represents a message that was published during a test
type RecordedMessage struct {
	EventName string
	Message   Message
	Listeners int
	Timestamp time.Time
}

// RecordingTransport wraps a transport and records all published messages.
type RecordingTransport struct {
	transport.Transport
	mu       sync.Mutex
	messages []RecordedMessage
}

// NewRecordingTransport wraps t. A nil t wraps a new local transport.
func NewRecordingTransport(t transport.Transport) *RecordingTransport {
	if t == nil {
		t = local.New()
	}
	return &RecordingTransport{Transport: t}
}

// Publish delegates to the underlying transport and records the message
func (t *RecordingTransport) Publish(ctx context.Context, name string, msg Message) (int, error) {
	n, err := t.Transport.Publish(ctx, name, msg)
	if err != nil {
		return n, err
	}
	t.mu.Lock()
	t.messages = append(t.messages, RecordedMessage{
		EventName: name,
		Message:   msg,
		Listeners: n,
		Timestamp: time.Now(),
	})
	t.mu.Unlock()
	return n, nil
}

// Messages returns a copy of all recorded messages
func (t *RecordingTransport) Messages() []RecordedMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]RecordedMessage, len(t.messages))
	copy(result, t.messages)
	return result
}

// MessagesFor returns recorded messages for a specific event
func (t *RecordingTransport) MessagesFor(eventName string) []RecordedMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var result []RecordedMessage
	for _, m := range t.messages {
		if m.EventName == eventName {
			result = append(result, m)
		}
	}
	return result
}

// Reset clears all recorded messages
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()
}

// Count returns the number of recorded messages
func (t *RecordingTransport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// HandlerCall is a single invocation recorded by a Recorder
type HandlerCall struct {
	Event         string
	Data          any
	CorrelationID string
}

// Recorder collects handler invocations for later assertions
type Recorder struct {
	mu     sync.Mutex
	calls  []HandlerCall
	notify chan struct{}
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Handler returns a Handler that records every call
func (r *Recorder) Handler() Handler {
	return func(ctx context.Context, data any, correlationID string) {
		r.record(HandlerCall{Event: ContextName(ctx), Data: data, CorrelationID: correlationID})
	}
}

// JoinHandler returns a JoinHandler that records the payload map as Data
func (r *Recorder) JoinHandler() JoinHandler {
	return func(ctx context.Context, payloads map[string]any, correlationID string) {
		r.record(HandlerCall{Event: ContextName(ctx), Data: payloads, CorrelationID: correlationID})
	}
}

func (r *Recorder) record(c HandlerCall) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Calls returns a copy of the recorded calls
func (r *Recorder) Calls() []HandlerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]HandlerCall, len(r.calls))
	copy(result, r.calls)
	return result
}

// Count returns the number of recorded calls
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// WaitFor blocks until at least n calls were recorded or timeout elapses.
// Returns false on timeout.
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if r.Count() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return r.Count() >= n
		}
	}
}

// Reset clears the recorded calls
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
