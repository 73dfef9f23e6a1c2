package state_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

func TestNew_CopiesInput(t *testing.T) {
	input := map[string]any{"topic": "bees"}
	s := state.New(input)
	input["topic"] = "wasps"

	if got := state.GetString(s, "topic"); got != "bees" {
		t.Errorf("GetString(topic) = %q, want %q", got, "bees")
	}
}

func TestState_With(t *testing.T) {
	s1 := state.New(map[string]any{"a": 1})
	s2 := s1.With("b", 2)

	if s1.Has("b") {
		t.Error("With() modified the original state")
	}
	if !s2.Has("a") || !s2.Has("b") {
		t.Errorf("With() keys = %v, want [a b]", s2.Keys())
	}
	if s2.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s2.Len())
	}
}

func TestState_Data_IsCopy(t *testing.T) {
	s := state.New(map[string]any{"a": 1})
	data := s.Data()
	data["a"] = 99

	if v, _ := s.Get("a"); v != 1 {
		t.Errorf("Get(a) = %v after mutating Data(), want 1", v)
	}

	var zero state.State
	if zero.Data() == nil {
		t.Error("zero State Data() = nil, want empty map")
	}
}

func TestGetAs(t *testing.T) {
	s := state.New(map[string]any{"count": 3, "name": "x"})

	if n, ok := state.GetAs[int](s, "count"); !ok || n != 3 {
		t.Errorf("GetAs[int](count) = %v, %v; want 3, true", n, ok)
	}
	if _, ok := state.GetAs[int](s, "name"); ok {
		t.Error("GetAs[int](name) ok = true, want false")
	}
	if _, ok := state.GetAs[string](s, "missing"); ok {
		t.Error("GetAs[string](missing) ok = true, want false")
	}
}

func TestGetString(t *testing.T) {
	s := state.New(map[string]any{"s": "text", "n": 42, "nil": nil})

	tests := []struct {
		key  string
		want string
	}{
		{"s", "text"},
		{"n", "42"},
		{"nil", ""},
		{"missing", ""},
	}

	for _, tt := range tests {
		if got := state.GetString(s, tt.key); got != tt.want {
			t.Errorf("GetString(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestSlice(t *testing.T) {
	s := state.New(map[string]any{
		"typed": []string{"a", "b"},
		"mixed": []any{"a", 1, "b"},
		"str":   "not a slice",
	})

	if got := state.Slice[string](s, "typed"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Slice(typed) = %v", got)
	}
	if got := state.Slice[string](s, "mixed"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Slice(mixed) = %v, want [a b]", got)
	}
	if got := state.Slice[string](s, "str"); got != nil {
		t.Errorf("Slice(str) = %v, want nil", got)
	}
	if got := state.Slice[string](s, "missing"); got != nil {
		t.Errorf("Slice(missing) = %v, want nil", got)
	}
}

func TestState_JSON(t *testing.T) {
	s := state.New(map[string]any{"answer": "42"})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(data) != `{"answer":"42"}` {
		t.Errorf("json.Marshal() = %s", data)
	}

	var decoded state.State
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if state.GetString(decoded, "answer") != "42" {
		t.Errorf("decoded answer = %q", state.GetString(decoded, "answer"))
	}

	var zero state.State
	if data, _ := json.Marshal(zero); string(data) != "{}" {
		t.Errorf("json.Marshal(zero) = %s, want {}", data)
	}
}
