package payload

import (
	"errors"
	"fmt"
	"reflect"
)

// DataKey is the field name of the payload wrapper convention
const DataKey = "data"

// Wrapped is the struct form of the {"data": value} wrapper
type Wrapped struct {
	Data any `json:"data" msgpack:"data"`
}

// Wrap returns v wrapped as {"data": v}
func Wrap(v any) map[string]any {
	return map[string]any{DataKey: v}
}

// Unwrap returns the inner value when v follows the wrapper convention,
// otherwise v itself. A map with a "data" key counts as wrapped regardless of
// its other keys.
func Unwrap(v any) any {
	switch w := v.(type) {
	case map[string]any:
		if inner, ok := w[DataKey]; ok {
			return inner
		}
	case Wrapped:
		return w.Data
	case *Wrapped:
		if w != nil {
			return w.Data
		}
	}
	return v
}

// As converts a published value into T.
//
// Resolution order:
//  1. v is already a T
//  2. the unwrapped value is a T
//  3. the unwrapped value is re-encoded with c and decoded into T
//
// A nil codec means JSON. Pointer types are allocated before decoding so that
// proto.Message targets work with the Proto codec.
func As[T any](v any, c Codec) (T, error) {
	var out T
	if t, ok := v.(T); ok {
		return t, nil
	}
	inner := Unwrap(v)
	if t, ok := inner.(T); ok {
		return t, nil
	}
	if inner == nil {
		return out, fmt.Errorf("%w: nil payload for %T", ErrConvert, out)
	}
	if c == nil {
		c = Default()
	}

	data, err := c.Encode(inner)
	if err != nil {
		return out, errors.Join(ErrConvert, err)
	}

	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() == reflect.Pointer {
		ptr := reflect.New(rt.Elem())
		if err := c.Decode(data, ptr.Interface()); err != nil {
			return out, errors.Join(ErrConvert, err)
		}
		return ptr.Interface().(T), nil
	}

	if err := c.Decode(data, &out); err != nil {
		return out, errors.Join(ErrConvert, err)
	}
	return out, nil
}
