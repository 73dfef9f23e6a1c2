package state

import "maps"

// Store holds one run's accumulated state. It is not safe for concurrent
// use: the run executor is its only writer, and nodes only ever see
// snapshots.
type Store struct {
	schema *Schema
	data   map[string]any
}

// NewStore creates a store seeded with initial. Initial values for Append
// fields must be sequences and are copied so the caller's slices are never
// shared with the run.
func NewStore(schema *Schema, initial map[string]any) (*Store, error) {
	if schema == nil {
		schema = NewSchema()
	}

	data := make(map[string]any, len(initial))
	for field, value := range initial {
		if schema.Policy(field) == Append && value != nil {
			seq, err := appendSequence(nil, value)
			if err != nil {
				return nil, &UpdateError{Field: field, Err: err}
			}
			value = seq
		}
		data[field] = value
	}

	return &Store{schema: schema, data: data}, nil
}

// Apply merges a partial update using each field's policy. Apply is
// all-or-nothing: if any field fails to merge, no field is written.
func (s *Store) Apply(update Update) error {
	if len(update) == 0 {
		return nil
	}

	staged := make(map[string]any, len(update))
	for _, field := range update.Fields() {
		value := update[field]

		switch s.schema.Policy(field) {
		case Append:
			merged, err := appendSequence(s.data[field], value)
			if err != nil {
				return &UpdateError{Field: field, Err: err}
			}
			staged[field] = merged
		default:
			staged[field] = value
		}
	}

	maps.Copy(s.data, staged)
	return nil
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() State {
	return State{data: maps.Clone(s.data)}
}
