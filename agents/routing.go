package agents

import (
	"context"
	"strings"

	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

// Routing classifies a request as tech, health, or finance and answers it
// with the matching specialist. Labels outside that set go to the tech
// specialist.
func Routing() Definition {
	return Definition{
		Name:        "routing",
		Description: "Classify a request and answer with a tech, health, or finance specialist.",
		Wire: func(b *graph.Builder, deps Deps) error {
			err := b.AddNodeFunc("router", func(ctx context.Context, s state.State) (state.Update, error) {
				prompt := "Classify the user's request into one of: tech, health, finance.\n" +
					"Request: " + subject(s, "topic") + "\nOnly output the single label."
				out, err := ask(ctx, deps.Model, prompt)
				if err != nil {
					return nil, err
				}
				return state.Update{"route": strings.ToLower(strings.TrimSpace(out))}, nil
			})
			if err != nil {
				return err
			}
			if err := b.SetEntry("router"); err != nil {
				return err
			}

			specialists := []struct{ label, persona string }{
				{"tech", "As a software expert, answer: "},
				{"health", "As a medical writer (not medical advice), answer: "},
				{"finance", "As a finance analyst (not financial advice), answer: "},
			}
			labels := make(map[string]string, len(specialists))
			for _, sp := range specialists {
				id := sp.label + "_specialist"
				err := b.AddNodeFunc(id, func(ctx context.Context, s state.State) (state.Update, error) {
					out, err := ask(ctx, deps.Model, sp.persona+subject(s, "topic"))
					return state.Update{"answer": out}, err
				}, graph.Writes("answer"))
				if err != nil {
					return err
				}
				if err := b.AddEdge(id, "respond"); err != nil {
					return err
				}
				labels[sp.label] = id
			}

			route := func(s state.State) string { return state.GetString(s, "route") }
			if err := b.AddConditionalEdge("router", route, labels, graph.WithDefault("tech_specialist")); err != nil {
				return err
			}

			if err := b.AddNodeFunc("respond", func(_ context.Context, s state.State) (state.Update, error) {
				return state.Update{FieldMessages: reply(state.GetString(s, "answer"))}, nil
			}); err != nil {
				return err
			}
			return b.AddEdge("respond", graph.END)
		},
	}
}
