// Package payload provides event payload conversion for the typed bus API and
// for generated event types.
//
// The bus never inspects payloads. This package is where shape concerns live:
//
//   - Codec: JSON (default), MessagePack and Protobuf encoders used to convert
//     a published value into the type a subscriber asked for
//   - Unwrap: the payload convention where a value may arrive either raw or
//     wrapped as {"data": value}
//   - Check: a small schema check (required, typed, closed properties) used by
//     code produced by the safe-event generator
//
// Usage:
//
//	order, err := payload.As[Order](msg.Payload(), payload.MsgPack{})
package payload

import "errors"

// Payload errors
var (
	ErrConvert        = errors.New("payload conversion failed")
	ErrNotProto       = errors.New("payload must implement proto.Message")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Codec encodes/decodes event payload data.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes the payload to bytes.
	Encode(v any) ([]byte, error)

	// Decode deserializes bytes to the target type.
	// The target must be a pointer.
	Decode(data []byte, v any) error

	// ContentType returns the MIME type (e.g., "application/json").
	ContentType() string
}

// Default returns the default codec (JSON).
func Default() Codec {
	return JSON{}
}
