package agents

import (
	"context"

	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

// PromptChaining writes an article in three sequential model calls:
// make_outline -> write_draft -> edit_draft.
func PromptChaining() Definition {
	return Definition{
		Name:        "prompt_chaining",
		Description: "Outline, draft, then edit an article.",
		Wire: func(b *graph.Builder, deps Deps) error {
			nodes := []struct {
				id string
				fn graph.NodeFunc
			}{
				{"make_outline", func(ctx context.Context, s state.State) (state.Update, error) {
					out, err := ask(ctx, deps.Model, "Create a concise outline for an article about "+subject(s, "topic")+".")
					return state.Update{"outline": out}, err
				}},
				{"write_draft", func(ctx context.Context, s state.State) (state.Update, error) {
					out, err := ask(ctx, deps.Model, "Write a brief article following this outline:\n"+state.GetString(s, "outline"))
					return state.Update{"draft": out}, err
				}},
				{"edit_draft", func(ctx context.Context, s state.State) (state.Update, error) {
					out, err := ask(ctx, deps.Model, "Improve the clarity and structure of the following draft; return the improved version only:\n"+state.GetString(s, "draft"))
					return state.Update{"final": out, FieldMessages: reply(out)}, err
				}},
			}

			ids := make([]string, 0, len(nodes))
			for _, n := range nodes {
				if err := b.AddNode(n.id, n.fn); err != nil {
					return err
				}
				ids = append(ids, n.id)
			}
			return chain(b, ids...)
		},
	}
}

// EvaluatorOptimizer drafts a response, critiques it, and refines it once.
func EvaluatorOptimizer() Definition {
	return Definition{
		Name:        "evaluator_optimizer",
		Description: "Generate, critique, and refine a response.",
		Wire: func(b *graph.Builder, deps Deps) error {
			if err := b.AddNodeFunc("generate", func(ctx context.Context, s state.State) (state.Update, error) {
				out, err := ask(ctx, deps.Model, "Write an initial response for: "+subject(s, "prompt"))
				return state.Update{"draft": out}, err
			}); err != nil {
				return err
			}
			if err := b.AddNodeFunc("evaluate", func(ctx context.Context, s state.State) (state.Update, error) {
				out, err := ask(ctx, deps.Model, "Provide a brief, constructive critique (3 bullets max) of this text:\n"+state.GetString(s, "draft"))
				return state.Update{"critique": out}, err
			}); err != nil {
				return err
			}
			if err := b.AddNodeFunc("refine", func(ctx context.Context, s state.State) (state.Update, error) {
				out, err := ask(ctx, deps.Model, "Improve the original text using the critique. Return the improved version only.\n"+
					"CRITIQUE:\n"+state.GetString(s, "critique")+"\n\nORIGINAL:\n"+state.GetString(s, "draft"))
				return state.Update{"improved": out, FieldMessages: reply(out)}, err
			}); err != nil {
				return err
			}
			return chain(b, "generate", "evaluate", "refine")
		},
	}
}

// chain wires START -> ids[0] -> ... -> ids[n-1] -> END.
func chain(b *graph.Builder, ids ...string) error {
	if err := b.SetEntry(ids[0]); err != nil {
		return err
	}
	for i := 1; i < len(ids); i++ {
		if err := b.AddEdge(ids[i-1], ids[i]); err != nil {
			return err
		}
	}
	return b.AddEdge(ids[len(ids)-1], graph.END)
}
