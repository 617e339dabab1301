package filter

import (
	"fmt"
	"strings"
)

// ValueType is the declared type of a metadata field.
type ValueType string

const (
	TypeString ValueType = "STRING"
	TypeNumber ValueType = "NUMBER"
)

// Field describes one metadata field available for filtering.
type Field struct {
	Key         string    `json:"key"`
	Type        ValueType `json:"type"`
	Description string    `json:"description"`
}

// Schema is the validated set of metadata fields a filter may reference.
// The zero value is an empty schema (nothing is filterable).
type Schema struct {
	fields []Field
	byKey  map[string]Field
}

// NewSchema validates the field definitions and builds a Schema. Keys must
// be unique and non-empty, and every type must be STRING or NUMBER.
func NewSchema(fields []Field) (Schema, error) {
	byKey := make(map[string]Field, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			return Schema{}, fmt.Errorf("metadata field with empty key")
		}
		if f.Type != TypeString && f.Type != TypeNumber {
			return Schema{}, fmt.Errorf("metadata field %q: unknown type %q", f.Key, f.Type)
		}
		if _, dup := byKey[f.Key]; dup {
			return Schema{}, fmt.Errorf("duplicate metadata field %q", f.Key)
		}
		byKey[f.Key] = f
	}
	return Schema{fields: fields, byKey: byKey}, nil
}

// Has reports whether key is a declared field.
func (s Schema) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// Len returns the number of declared fields.
func (s Schema) Len() int { return len(s.fields) }

// Fields returns the declared fields in definition order.
func (s Schema) Fields() []Field { return s.fields }

// Render formats the schema as the bulleted field list shown to the
// extraction model.
func (s Schema) Render() string {
	var sb strings.Builder
	for _, f := range s.fields {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", f.Key, f.Type, f.Description)
	}
	return sb.String()
}
