package payload

import (
	"errors"
	"testing"
)

func TestCheck(t *testing.T) {
	shape := Shape{
		Required: []string{"id", "name"},
		Properties: map[string]Kind{
			"id":     KindInteger,
			"name":   KindString,
			"active": KindBoolean,
			"tags":   KindArray,
			"score":  KindNumber,
			"meta":   KindObject,
			"extra":  KindAny,
		},
		Closed: true,
	}

	tests := []struct {
		name    string
		in      any
		invalid []string
	}{
		{"valid map", map[string]any{"id": 7, "name": "a"}, nil},
		{"valid wrapped", Wrap(map[string]any{"id": 7.0, "name": "a", "tags": []any{}}), nil},
		{"valid struct", struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}{1, "x"}, nil},
		{"missing required", map[string]any{"id": 1}, []string{"name"}},
		{"null required", map[string]any{"id": 1, "name": nil}, []string{"name"}},
		{"fractional integer", map[string]any{"id": 1.5, "name": "a"}, []string{"id"}},
		{"wrong kinds", map[string]any{"id": "1", "name": 2, "active": "yes", "score": "x", "meta": 1}, []string{"id", "name", "active", "score", "meta"}},
		{"unknown property", map[string]any{"id": 1, "name": "a", "other": true}, []string{"other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.in, shape)
			if len(tt.invalid) == 0 {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
			for _, field := range tt.invalid {
				if !hasFieldError(err, field) {
					t.Errorf("expected field error for %q in %v", field, err)
				}
			}
		})
	}
}

func TestCheckNonObject(t *testing.T) {
	if err := Check(nil, Shape{}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for nil, got %v", err)
	}
	if err := Check(42, Shape{}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload for number, got %v", err)
	}
}

func TestCheckOpenShape(t *testing.T) {
	shape := Shape{Properties: map[string]Kind{"id": KindString}}
	if err := Check(map[string]any{"id": "a", "anything": 1}, shape); err != nil {
		t.Errorf("expected open shape to allow extra fields, got %v", err)
	}
}

func hasFieldError(err error, field string) bool {
	for _, e := range flatten(err) {
		var fe *FieldError
		if errors.As(e, &fe) && fe.Field == field {
			return true
		}
	}
	return false
}

func flatten(err error) []error {
	var out []error
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range u.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return append(out, err)
}
