package event

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Metadata carries string annotations on an envelope
type Metadata map[string]string

func NewMetadata() Metadata {
	return Metadata{}
}

// Get returns the metadata value for the provided key.
func (m Metadata) Get(key string) string {
	return m[key]
}

// Set sets the metadata key to provided value.
func (m Metadata) Set(key, value string) Metadata {
	m[key] = value
	return m
}

// String renders metadata with keys in sorted order
func (m Metadata) String() string {
	if m == nil {
		return ""
	}
	keys := slices.Sorted(maps.Keys(m))
	vals := make([]string, 0, len(keys))
	for _, key := range keys {
		vals = append(vals, fmt.Sprintf("%s=%s", key, m[key]))
	}
	return fmt.Sprintf("Metadata{%s}", strings.Join(vals, ", "))
}

// Copy metadata
func (m Metadata) Copy() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
