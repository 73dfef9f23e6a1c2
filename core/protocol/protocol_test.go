package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/tailored-agentic-units/stategraph/core/protocol"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role protocol.Role
		want bool
	}{
		{protocol.RoleSystem, true},
		{protocol.RoleUser, true},
		{protocol.RoleAssistant, true},
		{protocol.RoleTool, true},
		{"human", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.want {
				t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestMessageConstructors(t *testing.T) {
	user := protocol.UserMessage("hi")
	if user.Role != protocol.RoleUser || user.Content != "hi" {
		t.Errorf("UserMessage() = %+v", user)
	}

	assistant := protocol.AssistantMessage("hello")
	if assistant.Role != protocol.RoleAssistant || assistant.Content != "hello" {
		t.Errorf("AssistantMessage() = %+v", assistant)
	}
}

func TestLastUserText(t *testing.T) {
	tests := []struct {
		name     string
		messages []protocol.Message
		fallback string
		want     string
	}{
		{
			name:     "empty history uses fallback",
			fallback: "bees",
			want:     "bees",
		},
		{
			name: "latest user message wins",
			messages: []protocol.Message{
				protocol.UserMessage("first"),
				protocol.AssistantMessage("reply"),
				protocol.UserMessage("second"),
				protocol.AssistantMessage("reply"),
			},
			want: "second",
		},
		{
			name: "no user message uses fallback",
			messages: []protocol.Message{
				protocol.NewMessage(protocol.RoleSystem, "be brief"),
			},
			fallback: "topic",
			want:     "topic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := protocol.LastUserText(tt.messages, tt.fallback); got != tt.want {
				t.Errorf("LastUserText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeMessages(t *testing.T) {
	raw := []any{
		map[string]any{"role": "user", "content": "2 + 2"},
		map[string]any{"role": "assistant", "content": "4"},
	}

	msgs, err := protocol.DecodeMessages(raw)
	if err != nil {
		t.Fatalf("DecodeMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1].Role != protocol.RoleAssistant || msgs[1].Content != "4" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}

func TestDecodeMessages_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"unknown role", []any{map[string]any{"role": "human", "content": "x"}}},
		{"not a list", map[string]any{"role": "user"}},
		{"non-string content", []any{map[string]any{"role": "user", "content": 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := protocol.DecodeMessages(tt.in); err == nil {
				t.Error("DecodeMessages() error = nil, want error")
			}
		})
	}
}

func TestDecodeMessages_PassThrough(t *testing.T) {
	in := []protocol.Message{protocol.UserMessage("x")}

	got, err := protocol.DecodeMessages(in)
	if err != nil {
		t.Fatalf("DecodeMessages() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "x" {
		t.Errorf("DecodeMessages() = %+v", got)
	}

	none, err := protocol.DecodeMessages(nil)
	if err != nil || none != nil {
		t.Errorf("DecodeMessages(nil) = %v, %v; want nil, nil", none, err)
	}
}

func TestMessage_JSON_OmitsEmptyToolFields(t *testing.T) {
	data, err := json.Marshal(protocol.UserMessage("hello"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, exists := raw["tool_call_id"]; exists {
		t.Error("tool_call_id should be omitted when empty")
	}
	if _, exists := raw["tool_calls"]; exists {
		t.Error("tool_calls should be omitted when empty")
	}
}

func TestToolCall_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"nested format", `{"id":"call_1","type":"function","function":{"name":"calculator","arguments":"{\"expression\":\"1+1\"}"}}`},
		{"flat format", `{"id":"call_1","name":"calculator","arguments":"{\"expression\":\"1+1\"}"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tc protocol.ToolCall
			if err := json.Unmarshal([]byte(tt.data), &tc); err != nil {
				t.Fatalf("UnmarshalJSON failed: %v", err)
			}
			if tc.ID != "call_1" {
				t.Errorf("got ID %q, want %q", tc.ID, "call_1")
			}
			if tc.Name != "calculator" {
				t.Errorf("got Name %q, want %q", tc.Name, "calculator")
			}
			if tc.Arguments != `{"expression":"1+1"}` {
				t.Errorf("got Arguments %q", tc.Arguments)
			}
		})
	}
}

func TestToolCall_MarshalJSON_NestedFormat(t *testing.T) {
	tc := protocol.ToolCall{ID: "call_789", Name: "calculator", Arguments: `{"expression":"2*3"}`}

	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if raw["type"] != "function" {
		t.Errorf("got type %v, want %q", raw["type"], "function")
	}
	fn, ok := raw["function"].(map[string]any)
	if !ok {
		t.Fatalf("function field is not an object: %T", raw["function"])
	}
	if fn["name"] != "calculator" {
		t.Errorf("got function.name %v, want %q", fn["name"], "calculator")
	}
	if _, exists := raw["name"]; exists {
		t.Error("name should not be at top level in nested format")
	}

	var restored protocol.ToolCall
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if restored != tc {
		t.Errorf("round trip = %+v, want %+v", restored, tc)
	}
}
