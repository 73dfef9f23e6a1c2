package agents

import (
	"context"
	"fmt"
	"maps"

	"github.com/tailored-agentic-units/stategraph/core/protocol"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

// FieldMessages is the conversation history every catalog graph shares.
const FieldMessages = "messages"

var messagesPolicy = state.Append

// PrepareInput converts a decoded request payload into initial graph state:
// "messages" becomes []protocol.Message, and a bare "input" string becomes
// a single user message.
func PrepareInput(input map[string]any) (map[string]any, error) {
	out := maps.Clone(input)
	if out == nil {
		out = make(map[string]any)
	}

	if raw, ok := out[FieldMessages]; ok {
		msgs, err := protocol.DecodeMessages(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", FieldMessages, err)
		}
		out[FieldMessages] = msgs
	}

	if text, ok := out["input"].(string); ok {
		delete(out, "input")
		msgs, _ := out[FieldMessages].([]protocol.Message)
		out[FieldMessages] = append(msgs, protocol.UserMessage(text))
	}
	return out, nil
}

// Messages returns the conversation history held in s.
func Messages(s state.State) []protocol.Message {
	return state.Slice[protocol.Message](s, FieldMessages)
}

// LastReply returns the content of the last assistant message in s.
func LastReply(s state.State) string {
	msgs := Messages(s)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == protocol.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}

// subject returns field when set, otherwise the latest user message.
func subject(s state.State, field string) string {
	if v := state.GetString(s, field); v != "" {
		return v
	}
	return protocol.LastUserText(Messages(s), "")
}

func ask(ctx context.Context, m Model, prompt string) (string, error) {
	return m.Generate(ctx, []protocol.Message{protocol.UserMessage(prompt)})
}

func reply(content string) []protocol.Message {
	return []protocol.Message{protocol.AssistantMessage(content)}
}
