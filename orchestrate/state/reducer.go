package state

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Policy is the merge rule applied when a partial update is folded into
// accumulated state.
type Policy int

const (
	// Replace overwrites the field; within one step the last writer in
	// declaration order wins.
	Replace Policy = iota

	// Append concatenates a sequence value onto the existing sequence.
	Append
)

func (p Policy) String() string {
	switch p {
	case Replace:
		return "replace"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts "replace" or "append" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "replace":
		return Replace, nil
	case "append":
		return Append, nil
	}
	return Replace, fmt.Errorf("unknown merge policy: %q", s)
}

// Schema records the merge policy of each declared field. A Schema is
// mutated while a graph is being built and read-only afterwards.
type Schema struct {
	policies map[string]Policy
}

// NewSchema creates an empty Schema.
func NewSchema() *Schema {
	return &Schema{policies: make(map[string]Policy)}
}

// Declare registers a field's policy. Redeclaring with the same policy is a
// no-op; a different policy returns a *ConfigurationError.
func (s *Schema) Declare(field string, policy Policy) error {
	if field == "" {
		return ErrEmptyField
	}
	if policy != Replace && policy != Append {
		return fmt.Errorf("field %s: %w", field, ErrUnknownPolicy)
	}

	if existing, ok := s.policies[field]; ok {
		if existing != policy {
			return &ConfigurationError{Field: field, Declared: existing, Requested: policy}
		}
		return nil
	}

	s.policies[field] = policy
	return nil
}

// Policy returns the field's declared policy, or Replace when undeclared.
func (s *Schema) Policy(field string) Policy {
	if s == nil {
		return Replace
	}
	return s.policies[field]
}

// Declared reports whether the field has an explicit declaration.
func (s *Schema) Declared(field string) bool {
	if s == nil {
		return false
	}
	_, ok := s.policies[field]
	return ok
}

// Fields returns the declared field names in sorted order.
func (s *Schema) Fields() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.policies))
}

// Clone returns an independent copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return NewSchema()
	}
	return &Schema{policies: maps.Clone(s.policies)}
}

// appendSequence returns a newly allocated sequence holding existing
// followed by incoming. When both share a slice type the result keeps that
// type; otherwise it falls back to []any.
func appendSequence(existing, incoming any) (any, error) {
	if incoming == nil {
		return existing, nil
	}

	in := reflect.ValueOf(incoming)
	if !isSequence(in) {
		return nil, fmt.Errorf("%w: got %T", ErrNotSequence, incoming)
	}

	if existing == nil {
		return copySequence(in, in.Len()), nil
	}

	cur := reflect.ValueOf(existing)
	if !isSequence(cur) {
		return nil, fmt.Errorf("%w: existing value is %T", ErrNotSequence, existing)
	}

	if cur.Kind() == reflect.Slice && cur.Type() == in.Type() {
		out := reflect.MakeSlice(cur.Type(), 0, cur.Len()+in.Len())
		out = reflect.AppendSlice(out, cur)
		out = reflect.AppendSlice(out, in)
		return out.Interface(), nil
	}

	out := make([]any, 0, cur.Len()+in.Len())
	for i := range cur.Len() {
		out = append(out, cur.Index(i).Interface())
	}
	for i := range in.Len() {
		out = append(out, in.Index(i).Interface())
	}
	return out, nil
}

func isSequence(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

func copySequence(v reflect.Value, capacity int) any {
	if v.Kind() == reflect.Array {
		out := make([]any, 0, capacity)
		for i := range v.Len() {
			out = append(out, v.Index(i).Interface())
		}
		return out
	}
	out := reflect.MakeSlice(v.Type(), v.Len(), capacity)
	reflect.Copy(out, v)
	return out.Interface()
}
