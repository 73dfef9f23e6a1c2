package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/stategraph/core/protocol"
)

// Model generates an assistant reply for a conversation. Graph nodes receive
// their Model through Deps; nothing in this package holds a shared client.
type Model interface {
	Generate(ctx context.Context, messages []protocol.Message) (string, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, messages []protocol.Message) (string, error)

func (f ModelFunc) Generate(ctx context.Context, messages []protocol.Message) (string, error) {
	return f(ctx, messages)
}

// Rule answers prompts containing Contains (case-insensitive) with Respond.
type Rule struct {
	Contains string
	Respond  func(prompt string) string
}

// TemplateModel is a deterministic, offline Model. The first rule matching
// the last message wins; otherwise the reply restates the prompt's first
// line.
type TemplateModel struct {
	Rules []Rule
}

// NewTemplateModel returns a TemplateModel with rules for the prompts the
// catalog graphs send: topic classification and task breakdown.
func NewTemplateModel() *TemplateModel {
	return &TemplateModel{Rules: []Rule{
		{Contains: "classify the user's request", Respond: classify},
		{Contains: "break the task into 3", Respond: breakdown},
	}}
}

func (m *TemplateModel) Generate(ctx context.Context, messages []protocol.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("template model: no messages")
	}

	prompt := messages[len(messages)-1].Content
	lower := strings.ToLower(prompt)
	for _, rule := range m.Rules {
		if strings.Contains(lower, strings.ToLower(rule.Contains)) {
			return rule.Respond(prompt), nil
		}
	}
	return "Response to: " + firstLine(prompt), nil
}

var routeKeywords = []struct {
	label    string
	keywords []string
}{
	{"health", []string{"health", "sleep", "diet", "doctor", "symptom", "exercise", "medical"}},
	{"finance", []string{"finance", "money", "invest", "stock", "budget", "tax", "loan", "bank"}},
	{"tech", []string{"code", "software", "computer", "program", "server", "bug", "api"}},
}

// classify labels the request line of a classification prompt by keyword,
// answering "unknown" when nothing matches.
func classify(prompt string) string {
	request := strings.ToLower(prompt)
	if _, after, ok := strings.Cut(request, "request:"); ok {
		request = after
	}
	for _, route := range routeKeywords {
		for _, kw := range route.keywords {
			if strings.Contains(request, kw) {
				return route.label
			}
		}
	}
	return "unknown"
}

func breakdown(prompt string) string {
	task := prompt
	if _, after, ok := strings.Cut(prompt, "Task:"); ok {
		task = strings.TrimSpace(after)
	}
	return fmt.Sprintf("- Research %s\n- Outline %s\n- Summarize %s", task, task, task)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
