package generator

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/rbaliyan/safe-event/payload"
)

// ErrInvalidSchema is returned for schema documents that cannot be turned into Go code
var ErrInvalidSchema = errors.New("invalid event schema")

// Document is one event schema file: a domain and its events
type Document struct {
	Domain string                     `json:"domain" yaml:"domain"`
	Prefix string                     `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Events map[string]EventDefinition `json:"events" yaml:"events"`
}

// EventDefinition describes the payload of one event
type EventDefinition struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Schema      Schema `json:"schema" yaml:"schema"`
}

// Schema is the JSON Schema subset understood by the generator
type Schema struct {
	Type                 string              `json:"type" yaml:"type"`
	Properties           map[string]Property `json:"properties" yaml:"properties"`
	Required             []string            `json:"required,omitempty" yaml:"required,omitempty"`
	AdditionalProperties *bool               `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
}

// Property is a single payload property
type Property struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// DomainName returns the domain, falling back to the legacy prefix field
func (d *Document) DomainName() string {
	if d.Domain != "" {
		return d.Domain
	}
	return d.Prefix
}

// Validate reports every problem in the document
func (d *Document) Validate() error {
	var errs []error
	if d.DomainName() == "" {
		errs = append(errs, errors.New("domain is required"))
	} else if exportName(d.DomainName()) == "" {
		errs = append(errs, fmt.Errorf("domain %q is not a valid identifier", d.DomainName()))
	}
	if len(d.Events) == 0 {
		errs = append(errs, errors.New("at least one event is required"))
	}
	for _, name := range slices.Sorted(maps.Keys(d.Events)) {
		if exportName(name) == "" {
			errs = append(errs, fmt.Errorf("event %q is not a valid identifier", name))
			continue
		}
		if err := d.Events[name].Schema.validate(); err != nil {
			errs = append(errs, fmt.Errorf("event %q: %w", name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSchema, errors.Join(errs...))
}

func (s Schema) validate() error {
	var errs []error
	if s.Type != "" && s.Type != "object" {
		errs = append(errs, fmt.Errorf("schema type must be object, got %q", s.Type))
	}
	fields := make(map[string]string, len(s.Properties))
	for _, prop := range slices.Sorted(maps.Keys(s.Properties)) {
		field := exportName(prop)
		if field == "" {
			errs = append(errs, fmt.Errorf("property %q is not a valid identifier", prop))
			continue
		}
		if other, ok := fields[field]; ok {
			errs = append(errs, fmt.Errorf("properties %q and %q map to the same field %s", other, prop, field))
			continue
		}
		fields[field] = prop
	}
	for _, req := range s.Required {
		if _, ok := s.Properties[req]; !ok {
			errs = append(errs, fmt.Errorf("required property %q is not declared", req))
		}
	}
	return errors.Join(errs...)
}

// kind maps a JSON Schema type to a payload.Kind
func kind(schemaType string) payload.Kind {
	switch k := payload.Kind(schemaType); k {
	case payload.KindString, payload.KindNumber, payload.KindInteger,
		payload.KindBoolean, payload.KindArray, payload.KindObject:
		return k
	}
	return payload.KindAny
}

// goType maps a JSON Schema type to the Go type of a payload field
func goType(schemaType string) string {
	switch kind(schemaType) {
	case payload.KindString:
		return "string"
	case payload.KindNumber:
		return "float64"
	case payload.KindInteger:
		return "int64"
	case payload.KindBoolean:
		return "bool"
	case payload.KindArray:
		return "[]any"
	case payload.KindObject:
		return "map[string]any"
	}
	return "any"
}

// kindExpr is the Go expression for a payload.Kind in generated code
func kindExpr(schemaType string) string {
	switch kind(schemaType) {
	case payload.KindString:
		return "payload.KindString"
	case payload.KindNumber:
		return "payload.KindNumber"
	case payload.KindInteger:
		return "payload.KindInteger"
	case payload.KindBoolean:
		return "payload.KindBoolean"
	case payload.KindArray:
		return "payload.KindArray"
	case payload.KindObject:
		return "payload.KindObject"
	}
	return "payload.KindAny"
}

var initialisms = map[string]string{
	"id": "ID", "url": "URL", "uri": "URI", "api": "API", "http": "HTTP",
	"json": "JSON", "uuid": "UUID", "ip": "IP", "sql": "SQL",
}

// exportName converts a schema name such as "user-created" or "first_name"
// into an exported Go identifier. Returns "" if no identifier can be formed.
func exportName(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, w := range words {
		if up, ok := initialisms[strings.ToLower(w)]; ok {
			b.WriteString(up)
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		return ""
	}
	return out
}

// snakeName converts a domain name into a file name stem
func snakeName(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		default:
			if b.Len() > 0 && prevLower {
				b.WriteByte('_')
			}
			prevLower = false
		}
	}
	return strings.Trim(b.String(), "_")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
