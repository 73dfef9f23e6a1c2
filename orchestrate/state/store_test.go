package state_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

func TestSchema_Declare(t *testing.T) {
	tests := []struct {
		name     string
		first    state.Policy
		second   state.Policy
		field    string
		wantConf bool
		wantErr  error
	}{
		{name: "identical redeclare", field: "messages", first: state.Append, second: state.Append},
		{name: "conflicting redeclare", field: "messages", first: state.Append, second: state.Replace, wantConf: true},
		{name: "empty field", field: "", first: state.Replace, second: state.Replace, wantErr: state.ErrEmptyField},
		{name: "unknown policy", field: "x", first: state.Replace, second: state.Policy(7), wantErr: state.ErrUnknownPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := state.NewSchema()
			err := schema.Declare(tt.field, tt.first)
			if err == nil {
				err = schema.Declare(tt.field, tt.second)
			}

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Declare() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			var confErr *state.ConfigurationError
			if got := errors.As(err, &confErr); got != tt.wantConf {
				t.Fatalf("Declare() error = %v, want ConfigurationError = %v", err, tt.wantConf)
			}
			if tt.wantConf && (confErr.Declared != tt.first || confErr.Requested != tt.second) {
				t.Errorf("ConfigurationError = %+v", confErr)
			}
			if got := schema.Policy(tt.field); got != tt.first {
				t.Errorf("Policy(%q) = %v, want %v", tt.field, got, tt.first)
			}
		})
	}
}

func TestSchema_UndeclaredDefaultsToReplace(t *testing.T) {
	schema := state.NewSchema()
	if got := schema.Policy("anything"); got != state.Replace {
		t.Errorf("Policy(anything) = %v, want replace", got)
	}
	if schema.Declared("anything") {
		t.Error("Declared(anything) = true, want false")
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := state.ParsePolicy("append"); err != nil || p != state.Append {
		t.Errorf("ParsePolicy(append) = %v, %v", p, err)
	}
	if p, err := state.ParsePolicy("replace"); err != nil || p != state.Replace {
		t.Errorf("ParsePolicy(replace) = %v, %v", p, err)
	}
	if _, err := state.ParsePolicy("merge"); err == nil {
		t.Error("ParsePolicy(merge) error = nil, want error")
	}
}

func newStore(t *testing.T, initial map[string]any) *state.Store {
	t.Helper()
	schema := state.NewSchema()
	if err := schema.Declare("results", state.Append); err != nil {
		t.Fatalf("Declare() error = %v", err)
	}
	store, err := state.NewStore(schema, initial)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStore_Apply(t *testing.T) {
	tests := []struct {
		name    string
		initial map[string]any
		updates []state.Update
		field   string
		want    any
	}{
		{
			name:    "replace overwrites",
			initial: map[string]any{"answer": "a"},
			updates: []state.Update{{"answer": "b"}, {"answer": "c"}},
			field:   "answer",
			want:    "c",
		},
		{
			name:    "append concatenates in apply order",
			updates: []state.Update{{"results": []string{"a-result"}}, {"results": []string{"b-result", "c-result"}}},
			field:   "results",
			want:    []string{"a-result", "b-result", "c-result"},
		},
		{
			name:    "append onto initial sequence",
			initial: map[string]any{"results": []string{"x"}},
			updates: []state.Update{{"results": []string{"y"}}},
			field:   "results",
			want:    []string{"x", "y"},
		},
		{
			name:    "empty update contributes nothing",
			initial: map[string]any{"results": []string{"x"}},
			updates: []state.Update{{}, nil},
			field:   "results",
			want:    []string{"x"},
		},
		{
			name:    "mixed element types fall back to []any",
			initial: map[string]any{"results": []string{"x"}},
			updates: []state.Update{{"results": []int{1}}},
			field:   "results",
			want:    []any{"x", 1},
		},
		{
			name:    "nil append value is a no-op",
			initial: map[string]any{"results": []string{"x"}},
			updates: []state.Update{{"results": nil}},
			field:   "results",
			want:    []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t, tt.initial)
			for _, u := range tt.updates {
				if err := store.Apply(u); err != nil {
					t.Fatalf("Apply() error = %v", err)
				}
			}

			got, _ := store.Snapshot().Get(tt.field)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s = %#v, want %#v", tt.field, got, tt.want)
			}
		})
	}
}

func TestStore_Apply_NotSequence(t *testing.T) {
	store := newStore(t, nil)

	err := store.Apply(state.Update{"answer": "kept out", "results": "oops"})

	var updErr *state.UpdateError
	if !errors.As(err, &updErr) || updErr.Field != "results" {
		t.Fatalf("Apply() error = %v, want UpdateError for results", err)
	}
	if !errors.Is(err, state.ErrNotSequence) {
		t.Errorf("Apply() error = %v, want ErrNotSequence", err)
	}
	if store.Snapshot().Has("answer") {
		t.Error("failed Apply() wrote other fields")
	}
}

func TestNewStore_InvalidInitialAppend(t *testing.T) {
	schema := state.NewSchema()
	_ = schema.Declare("results", state.Append)

	if _, err := state.NewStore(schema, map[string]any{"results": 3}); !errors.Is(err, state.ErrNotSequence) {
		t.Errorf("NewStore() error = %v, want ErrNotSequence", err)
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	initial := []string{"x"}
	store := newStore(t, map[string]any{"results": initial})

	before := store.Snapshot()
	if err := store.Apply(state.Update{"results": []string{"y"}, "answer": "set"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := state.Slice[string](before, "results"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("earlier snapshot results = %v, want [x]", got)
	}
	if before.Has("answer") {
		t.Error("earlier snapshot observed a later Replace write")
	}

	after := state.Slice[string](store.Snapshot(), "results")
	after[0] = "mutated"
	if initial[0] != "x" {
		t.Error("store aliased the caller's initial slice")
	}
}
