package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Kind is a JSON Schema primitive type name
type Kind string

const (
	KindAny     Kind = ""
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// Shape describes the object form a payload must have.
type Shape struct {
	// Required lists properties that must be present and non-null
	Required []string
	// Properties maps declared property names to their kind
	Properties map[string]Kind
	// Closed rejects properties not listed in Properties
	Closed bool
}

// FieldError reports a single property that failed a Shape check
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Check validates the (unwrapped) payload v against s. Structs are checked
// through their JSON form. Every violation is reported; the returned error
// wraps ErrInvalidPayload and each *FieldError.
func Check(v any, s Shape) error {
	obj, err := toObject(Unwrap(v))
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range s.Required {
		if val, ok := obj[name]; !ok || val == nil {
			errs = append(errs, &FieldError{Field: name, Reason: "is required"})
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		kind, declared := s.Properties[k]
		if !declared {
			if s.Closed {
				errs = append(errs, &FieldError{Field: k, Reason: "is not allowed"})
			}
			continue
		}
		if val := obj[k]; val != nil && !matches(val, kind) {
			errs = append(errs, &FieldError{Field: k, Reason: fmt.Sprintf("must be %s, got %T", kind, val)})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPayload, errors.Join(errs...))
}

func toObject(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	if v == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrInvalidPayload)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: payload is not an object (%T)", ErrInvalidPayload, v)
	}
	return m, nil
}

func matches(v any, kind Kind) bool {
	rv := reflect.ValueOf(v)
	switch kind {
	case KindAny:
		return true
	case KindString:
		return rv.Kind() == reflect.String
	case KindBoolean:
		return rv.Kind() == reflect.Bool
	case KindNumber:
		return isNumber(rv)
	case KindInteger:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			return f == math.Trunc(f) && !math.IsInf(f, 0)
		}
		return isNumber(rv)
	case KindArray:
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	case KindObject:
		return rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct
	}
	return false
}

func isNumber(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
