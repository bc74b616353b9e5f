package payload

import "google.golang.org/protobuf/proto"

// Proto implements Codec using Protocol Buffers serialization.
// Both the published value and the requested type must be proto.Message
// implementations.
//
// Usage:
//
//	ev := event.Define[*pb.Order](bus, "orders", event.WithPayloadCodec(payload.Proto{}))
type Proto struct{}

// Encode serializes the payload to Protocol Buffer bytes.
func (Proto) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, ErrNotProto
	}
	return proto.Marshal(msg)
}

// Decode deserializes Protocol Buffer bytes to the target type.
// The target must be a pointer to a proto.Message.
func (Proto) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return ErrNotProto
	}
	return proto.Unmarshal(data, msg)
}

// ContentType returns the MIME type for Protocol Buffers.
func (Proto) ContentType() string {
	return "application/protobuf"
}

// Compile-time check.
var _ Codec = Proto{}

func init() {
	Register(Proto{})
}
