package event

import (
	"errors"
	"fmt"
	"time"
)

// Bus errors
var (
	// ErrBusUninitialized is returned by Instance before Init was called.
	ErrBusUninitialized = errors.New("event bus not initialized: call event.Init() first")

	// ErrBusClosed is returned by every operation on a closed bus.
	ErrBusClosed = errors.New("bus is closed")

	// ErrNilHandler is returned when a subscription is requested without a handler.
	ErrNilHandler = errors.New("handler is nil")

	// ErrCorrelationRequired is returned by SubscribeOnce when no correlation ID is given.
	ErrCorrelationRequired = errors.New("correlation ID is required")

	// ErrEmptyJoin is returned by SubscribeJoin when no event names are given.
	ErrEmptyJoin = errors.New("join requires at least one event name")

	// ErrJoinConflict is returned by SubscribeJoin on a bus created with
	// WithStrictJoins(true) when a join over the same event-name set is armed.
	ErrJoinConflict = errors.New("join already armed for this event set")

	// ErrTimeout matches every *TimeoutError via errors.Is.
	ErrTimeout = errors.New("request timed out")
)

// TimeoutError is returned by Request when no reply arrived before the deadline.
type TimeoutError struct {
	// Event is the request event name
	Event string
	// Reply is the event name the reply was expected on
	Reply string
	// Timeout is the requested deadline
	Timeout time.Duration
	// Elapsed is how long the caller actually waited
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %q timed out after %s waiting for %q", e.Event, e.Timeout, e.Reply)
}

// Is reports whether target is ErrTimeout
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IsTimeout checks if an error is a request timeout.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// PayloadError indicates a payload could not be converted to the type a
// typed handler expects.
type PayloadError struct {
	Event string
	Err   error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("event %q: %v", e.Event, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// IsPayloadError checks if an error is a payload conversion failure.
func IsPayloadError(err error) bool {
	var payloadErr *PayloadError
	return errors.As(err, &payloadErr)
}
