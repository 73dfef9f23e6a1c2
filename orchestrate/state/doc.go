// Package state provides the typed state store used by graph runs.
//
// # State
//
// State is an immutable snapshot of a run's fields. Nodes read it and never
// write to it; every mutation goes through a Store.
//
//	topic := state.GetString(s, "topic")
//	results := state.Slice[string](s, "results")
//
// # Reducers
//
// Each field has a merge Policy declared on a Schema. Replace overwrites the
// field; Append concatenates a sequence value onto the existing sequence.
// Undeclared fields default to Replace.
//
//	schema := state.NewSchema()
//	schema.Declare("messages", state.Append)
//	schema.Declare("answer", state.Replace)
//
// Redeclaring a field with a different policy returns a *ConfigurationError.
//
// # Store
//
// A Store holds one run's accumulated state. It is owned by a single writer
// (the run's executor) and hands out copy-on-read snapshots:
//
//	store, err := state.NewStore(schema, map[string]any{"topic": "bees"})
//	snap := store.Snapshot()
//	err = store.Apply(state.Update{"outline": "..."})
//
// Appends always allocate a fresh slice, so a snapshot taken before an
// Apply never observes the appended values.
package state
