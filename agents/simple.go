package agents

import (
	"context"
	"strings"

	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
	"github.com/tailored-agentic-units/stategraph/tools"
)

// Echo replies "Echo: <last user message>" without calling a model.
func Echo() Definition {
	return Definition{
		Name:        "echo",
		Description: "Echoes the latest user message.",
		Wire: func(b *graph.Builder, _ Deps) error {
			return wireSingle(b, "agent", func(_ context.Context, s state.State) (state.Update, error) {
				text := subject(s, "")
				content := "Hello from echo agent"
				if text != "" {
					content = "Echo: " + text
				}
				return state.Update{FieldMessages: reply(content)}, nil
			})
		},
	}
}

// Example sends the whole conversation to the model.
func Example() Definition {
	return Definition{
		Name:        "example",
		Description: "Single model call over the conversation.",
		Wire: func(b *graph.Builder, deps Deps) error {
			return wireSingle(b, "agent", func(ctx context.Context, s state.State) (state.Update, error) {
				content, err := deps.Model.Generate(ctx, Messages(s))
				if err != nil {
					return nil, err
				}
				return state.Update{FieldMessages: reply(content)}, nil
			})
		},
	}
}

// ToolAgent evaluates arithmetic queries with the calculator tool and sends
// everything else to the model.
func ToolAgent() Definition {
	return Definition{
		Name:        "tool_agent",
		Description: "Answers arithmetic with the calculator tool, anything else with the model.",
		Wire: func(b *graph.Builder, deps Deps) error {
			return wireSingle(b, "agent", func(ctx context.Context, s state.State) (state.Update, error) {
				query := subject(s, "query")

				var answer string
				if looksArithmetic(query) {
					result, err := deps.Tools.Execute(ctx, tools.CalculatorName, tools.CalculatorArgs(query))
					if err != nil {
						return nil, err
					}
					answer = "Result: " + result.Content
				} else {
					content, err := ask(ctx, deps.Model, query)
					if err != nil {
						return nil, err
					}
					answer = content
				}
				return state.Update{"answer": answer, FieldMessages: reply(answer)}, nil
			}, graph.Writes("answer", FieldMessages))
		},
	}
}

func looksArithmetic(query string) bool {
	return strings.ContainsAny(query, "0123456789") && strings.ContainsAny(query, "+-*/")
}

func wireSingle(b *graph.Builder, id string, fn graph.NodeFunc, opts ...graph.NodeOption) error {
	if err := b.AddNode(id, fn, opts...); err != nil {
		return err
	}
	if err := b.SetEntry(id); err != nil {
		return err
	}
	return b.AddEdge(id, graph.END)
}
