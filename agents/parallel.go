package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

type prompted struct {
	id     string
	field  string
	prompt string
}

// fanOutFromStart adds one node per prompt, each started from START and
// writing the model's answer to its own field.
func fanOutFromStart(b *graph.Builder, deps Deps, subjectField string, nodes []prompted) ([]string, error) {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		err := b.AddNodeFunc(n.id, func(ctx context.Context, s state.State) (state.Update, error) {
			out, err := ask(ctx, deps.Model, fmt.Sprintf(n.prompt, subject(s, subjectField)))
			return state.Update{n.field: out}, err
		}, graph.Writes(n.field))
		if err != nil {
			return nil, err
		}
		if err := b.AddEdge(graph.START, n.id); err != nil {
			return nil, err
		}
		ids = append(ids, n.id)
	}
	return ids, nil
}

// ParallelSectioning writes a joke, a story, and a poem concurrently and
// combines them once all three are done.
func ParallelSectioning() Definition {
	return Definition{
		Name:        "parallel_sectioning",
		Description: "Joke, story, and poem in parallel, then combined.",
		Wire: func(b *graph.Builder, deps Deps) error {
			ids, err := fanOutFromStart(b, deps, "topic", []prompted{
				{"call_llm_1", "joke", "Write a short funny joke about %s."},
				{"call_llm_2", "story", "Write a short bedtime story about %s."},
				{"call_llm_3", "poem", "Write a short poem about %s."},
			})
			if err != nil {
				return err
			}

			if err := b.AddNodeFunc("aggregator", aggregateSections); err != nil {
				return err
			}
			if err := b.AddJoin(ids, "aggregator"); err != nil {
				return err
			}
			return b.AddEdge("aggregator", graph.END)
		},
	}
}

func aggregateSections(_ context.Context, s state.State) (state.Update, error) {
	topic := subject(s, "topic")
	var parts []string
	for _, section := range []struct{ title, field string }{
		{"STORY", "story"}, {"JOKE", "joke"}, {"POEM", "poem"},
	} {
		if text := state.GetString(s, section.field); text != "" {
			parts = append(parts, section.title+":\n"+text)
		}
	}

	header := "Collected pieces:"
	if topic != "" {
		header = fmt.Sprintf("Here is a story, joke, and poem about %s!", topic)
	}
	if len(parts) == 0 {
		return state.Update{"combined_output": header + "\n(Waiting for sections...)"}, nil
	}

	combined := header + "\n\n" + strings.Join(parts, "\n\n")
	update := state.Update{"combined_output": combined}
	if len(parts) == 3 {
		update[FieldMessages] = reply(combined)
	}
	return update, nil
}

// ParallelVoting drafts three taglines concurrently and asks the model to
// pick the best.
func ParallelVoting() Definition {
	return Definition{
		Name:        "parallel_voting",
		Description: "Three tagline variants in parallel, then the best is chosen.",
		Wire: func(b *graph.Builder, deps Deps) error {
			ids, err := fanOutFromStart(b, deps, "topic", []prompted{
				{"variant1", "draft1", "Write a short product tagline about %s with humor."},
				{"variant2", "draft2", "Write a concise, professional product tagline about %s."},
				{"variant3", "draft3", "Write an edgy, bold product tagline about %s."},
			})
			if err != nil {
				return err
			}

			err = b.AddNodeFunc("choose_best", func(ctx context.Context, s state.State) (state.Update, error) {
				instruction := "You are selecting the best tagline. Consider clarity, memorability, and appeal.\n" +
					"Option A: " + state.GetString(s, "draft1") + "\n" +
					"Option B: " + state.GetString(s, "draft2") + "\n" +
					"Option C: " + state.GetString(s, "draft3") + "\n" +
					"Respond with the chosen option letter and the final improved tagline."
				out, err := ask(ctx, deps.Model, instruction)
				return state.Update{"best": out, FieldMessages: reply(out)}, err
			})
			if err != nil {
				return err
			}
			if err := b.AddJoin(ids, "choose_best"); err != nil {
				return err
			}
			return b.AddEdge("choose_best", graph.END)
		},
	}
}

const workerCount = 3

// OrchestratorWorker splits a task into up to three subtasks, runs one
// worker per subtask, and aggregates their results in worker order.
// Workers without a subtask contribute nothing.
func OrchestratorWorker() Definition {
	return Definition{
		Name:        "orchestrator_worker",
		Description: "Split a task, work the subtasks in parallel, and combine the results.",
		Wire: func(b *graph.Builder, deps Deps) error {
			if err := b.Declare("results", state.Append); err != nil {
				return err
			}

			err := b.AddNodeFunc("orchestrator", func(ctx context.Context, s state.State) (state.Update, error) {
				task := subject(s, "task")
				out, err := ask(ctx, deps.Model, "Break the task into 3 short, independent subtasks as bullet points.\nTask: "+task)
				if err != nil {
					return nil, err
				}
				return state.Update{"subtasks": splitSubtasks(out, task)}, nil
			})
			if err != nil {
				return err
			}
			if err := b.SetEntry("orchestrator"); err != nil {
				return err
			}

			workers := make([]string, 0, workerCount)
			for idx := range workerCount {
				id := fmt.Sprintf("worker%d", idx)
				err := b.AddNodeFunc(id, func(ctx context.Context, s state.State) (state.Update, error) {
					subtasks := state.Slice[string](s, "subtasks")
					if idx >= len(subtasks) {
						return state.Update{}, nil
					}
					out, err := ask(ctx, deps.Model, "Do this subtask succinctly: "+subtasks[idx])
					return state.Update{"results": []string{out}}, err
				}, graph.Writes("results"))
				if err != nil {
					return err
				}
				if err := b.AddEdge("orchestrator", id); err != nil {
					return err
				}
				workers = append(workers, id)
			}

			err = b.AddNodeFunc("aggregate", func(_ context.Context, s state.State) (state.Update, error) {
				var lines []string
				for _, r := range state.Slice[string](s, "results") {
					if r != "" {
						lines = append(lines, "- "+r)
					}
				}
				combined := strings.Join(lines, "\n\n")
				return state.Update{"final": combined, FieldMessages: reply(combined)}, nil
			})
			if err != nil {
				return err
			}
			if err := b.AddJoin(workers, "aggregate"); err != nil {
				return err
			}
			return b.AddEdge("aggregate", graph.END)
		},
	}
}

// splitSubtasks takes up to three non-empty lines of a bullet list, falling
// back to the task itself.
func splitSubtasks(list, task string) []string {
	var subs []string
	for _, line := range strings.Split(list, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "- ")
		if line != "" {
			subs = append(subs, line)
		}
	}
	if len(subs) == 0 {
		return []string{task}
	}
	if len(subs) > workerCount {
		subs = subs[:workerCount]
	}
	return subs
}
