package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Update is a node's partial write: field name to value. An empty or nil
// Update is valid and contributes nothing.
type Update map[string]any

// Fields returns the update's field names in sorted order.
func (u Update) Fields() []string {
	return slices.Sorted(maps.Keys(u))
}

// State is an immutable snapshot of run state.
//
// Values are shared with the store by reference; nodes must treat maps and
// slices read from a State as read-only.
type State struct {
	data map[string]any
}

// New creates a State holding a shallow copy of data.
func New(data map[string]any) State {
	return State{data: maps.Clone(data)}
}

// Get retrieves a field value. The boolean reports whether the field is set.
func (s State) Get(key string) (any, bool) {
	val, exists := s.data[key]
	return val, exists
}

// Has reports whether the field is set.
func (s State) Has(key string) bool {
	_, exists := s.data[key]
	return exists
}

// Keys returns the set field names in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s.data))
}

// Len returns the number of set fields.
func (s State) Len() int {
	return len(s.data)
}

// Data returns a shallow copy of the snapshot's fields.
func (s State) Data() map[string]any {
	if s.data == nil {
		return map[string]any{}
	}
	return maps.Clone(s.data)
}

// With returns a new State with key set to value. The receiver is unchanged.
func (s State) With(key string, value any) State {
	data := make(map[string]any, len(s.data)+1)
	maps.Copy(data, s.data)
	data[key] = value
	return State{data: data}
}

func (s State) MarshalJSON() ([]byte, error) {
	if s.data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.data)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	s.data = m
	return nil
}

// GetAs returns the field value asserted to T. It reports false when the
// field is unset or holds a different type.
func GetAs[T any](s State, key string) (T, bool) {
	val, exists := s.data[key]
	if !exists {
		var zero T
		return zero, false
	}
	typed, ok := val.(T)
	return typed, ok
}

// GetString returns a string field, or "" when unset. Non-string values are
// formatted with fmt.Sprint.
func GetString(s State, key string) string {
	val, exists := s.data[key]
	if !exists || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return fmt.Sprint(val)
}

// Slice returns a sequence field as []T. A []any field (the Append fallback
// for mixed element types, or decoded JSON) is converted element by element
// and elements that are not a T are skipped.
func Slice[T any](s State, key string) []T {
	val, exists := s.data[key]
	if !exists || val == nil {
		return nil
	}

	if typed, ok := val.([]T); ok {
		return slices.Clone(typed)
	}

	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}

	out := make([]T, 0, rv.Len())
	for i := range rv.Len() {
		if item, ok := rv.Index(i).Interface().(T); ok {
			out = append(out, item)
		}
	}
	return out
}
