package graph_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

func TestBuilder_Misuse(t *testing.T) {
	noop := set("x", 1)

	tests := []struct {
		name    string
		setup   func(b *graph.Builder) error
		wantErr error
	}{
		{
			name:    "empty id",
			setup:   func(b *graph.Builder) error { return b.AddNodeFunc("", noop) },
			wantErr: graph.ErrEmptyID,
		},
		{
			name:    "reserved id",
			setup:   func(b *graph.Builder) error { return b.AddNodeFunc(graph.END, noop) },
			wantErr: graph.ErrReservedID,
		},
		{
			name:    "nil node",
			setup:   func(b *graph.Builder) error { return b.AddNode("a", nil) },
			wantErr: graph.ErrNilNode,
		},
		{
			name: "duplicate node",
			setup: func(b *graph.Builder) error {
				_ = b.AddNodeFunc("a", noop)
				return b.AddNodeFunc("a", noop)
			},
			wantErr: graph.ErrDuplicateNode,
		},
		{
			name:    "edge from END",
			setup:   func(b *graph.Builder) error { return b.AddEdge(graph.END, "a") },
			wantErr: graph.ErrEdgeFromEnd,
		},
		{
			name:    "edge to START",
			setup:   func(b *graph.Builder) error { return b.AddEdge("a", graph.START) },
			wantErr: graph.ErrEdgeToStart,
		},
		{
			name: "duplicate edge",
			setup: func(b *graph.Builder) error {
				_ = b.AddEdge("a", "b")
				return b.AddEdge("a", "b")
			},
			wantErr: graph.ErrDuplicateEdge,
		},
		{
			name: "entry set twice",
			setup: func(b *graph.Builder) error {
				_ = b.SetEntry("a")
				return b.SetEntry("b")
			},
			wantErr: graph.ErrEntryAlreadySet,
		},
		{
			name:    "empty join",
			setup:   func(b *graph.Builder) error { return b.AddJoin(nil, "a") },
			wantErr: graph.ErrEmptyJoin,
		},
		{
			name:    "nil router",
			setup:   func(b *graph.Builder) error { return b.AddConditionalEdge("a", nil, map[string]string{"x": "b"}) },
			wantErr: graph.ErrNilRouter,
		},
		{
			name: "second conditional from same source",
			setup: func(b *graph.Builder) error {
				r := func(state.State) string { return "x" }
				_ = b.AddConditionalEdge("a", r, map[string]string{"x": "b"})
				return b.AddConditionalEdge("a", r, map[string]string{"y": "c"})
			},
			wantErr: graph.ErrDuplicateConditional,
		},
		{
			name: "conditional from START",
			setup: func(b *graph.Builder) error {
				return b.AddConditionalEdge(graph.START, func(state.State) string { return "x" }, map[string]string{"x": "a"})
			},
			wantErr: graph.ErrReservedID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setup(newBuilder("misuse"))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuilder_BuildOnce(t *testing.T) {
	b := newBuilder("once")
	must(t, b.AddNodeFunc("a", set("x", 1)))
	must(t, b.SetEntry("a"))
	build(t, b)

	if _, err := b.Build(); !errors.Is(err, graph.ErrBuilt) {
		t.Errorf("second Build() error = %v, want ErrBuilt", err)
	}
	if err := b.AddNodeFunc("b", set("x", 2)); !errors.Is(err, graph.ErrBuilt) {
		t.Errorf("AddNodeFunc after Build error = %v, want ErrBuilt", err)
	}
}

func TestBuild_Validation(t *testing.T) {
	route := func(state.State) string { return "x" }

	tests := []struct {
		name  string
		setup func(t *testing.T, b *graph.Builder)
		want  []error
	}{
		{
			name: "missing entry",
			setup: func(t *testing.T, b *graph.Builder) {
				must(t, b.AddNodeFunc("a", set("x", 1)))
			},
			want: []error{graph.ErrMissingEntry},
		},
		{
			name: "dangling edge",
			setup: func(t *testing.T, b *graph.Builder) {
				must(t, b.AddNodeFunc("a", set("x", 1)))
				must(t, b.SetEntry("a"))
				must(t, b.AddEdge("a", "ghost"))
			},
			want: []error{graph.ErrDanglingEdge},
		},
		{
			name: "dangling join source",
			setup: func(t *testing.T, b *graph.Builder) {
				must(t, b.AddNodeFunc("a", set("x", 1)))
				must(t, b.AddNodeFunc("j", set("x", 2)))
				must(t, b.SetEntry("a"))
				must(t, b.AddJoin([]string{"a", "ghost"}, "j"))
			},
			want: []error{graph.ErrDanglingEdge},
		},
		{
			name: "unreachable node",
			setup: func(t *testing.T, b *graph.Builder) {
				must(t, b.AddNodeFunc("a", set("x", 1)))
				must(t, b.AddNodeFunc("orphan", set("x", 2)))
				must(t, b.SetEntry("a"))
			},
			want: []error{graph.ErrUnreachableNode},
		},
		{
			name: "empty label map",
			setup: func(t *testing.T, b *graph.Builder) {
				must(t, b.AddNodeFunc("a", set("x", 1)))
				must(t, b.SetEntry("a"))
				must(t, b.AddConditionalEdge("a", route, map[string]string{}))
			},
			want: []error{graph.ErrEmptyLabelMap},
		},
		{
			name: "invalid default",
			setup: func(t *testing.T, b *graph.Builder) {
				must(t, b.AddNodeFunc("a", set("x", 1)))
				must(t, b.AddNodeFunc("b", set("x", 2)))
				must(t, b.SetEntry("a"))
				must(t, b.AddConditionalEdge("a", route, map[string]string{"x": "b"}, graph.WithDefault("ghost")))
			},
			want: []error{graph.ErrInvalidDefault},
		},
		{
			name: "cycle",
			setup: func(t *testing.T, b *graph.Builder) {
				must(t, b.AddNodeFunc("a", set("x", 1)))
				must(t, b.AddNodeFunc("b", set("x", 2)))
				must(t, b.SetEntry("a"))
				must(t, b.AddEdge("a", "b"))
				must(t, b.AddEdge("b", "a"))
			},
			want: []error{graph.ErrCycle},
		},
		{
			name: "several violations reported together",
			setup: func(t *testing.T, b *graph.Builder) {
				must(t, b.AddNodeFunc("a", set("x", 1)))
				must(t, b.SetEntry("a"))
				must(t, b.AddEdge("a", "ghost"))
				must(t, b.AddConditionalEdge("a", route, nil))
			},
			want: []error{graph.ErrDanglingEdge, graph.ErrEmptyLabelMap},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(tt.name)
			tt.setup(t, b)

			g, err := b.Build()
			if err == nil {
				t.Fatal("Build() error = nil")
			}
			if g != nil {
				t.Error("Build() returned a graph alongside an error")
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("Build() error = %v, want %v", err, want)
				}
			}

			var vErr *graph.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("Build() error %T is not a ValidationError", err)
			}
		})
	}
}

func TestBuild_EndTargetsNeedNoNode(t *testing.T) {
	b := newBuilder("end")
	must(t, b.AddNodeFunc("a", set("x", 1)))
	must(t, b.SetEntry("a"))
	must(t, b.AddConditionalEdge("a", func(state.State) string { return "done" },
		map[string]string{"done": graph.END}))
	build(t, b)
}

func TestBuild_SiblingReplaceWarnings(t *testing.T) {
	b := newBuilder("siblings")
	must(t, b.Declare("results", state.Append))
	must(t, b.AddNodeFunc("a", set("answer", "a"), graph.Writes("answer", "results")))
	must(t, b.AddNodeFunc("b", set("answer", "b"), graph.Writes("answer", "results")))
	must(t, b.AddNodeFunc("c", set("other", "c"), graph.Writes("other")))
	must(t, b.AddEdge(graph.START, "a"))
	must(t, b.AddEdge(graph.START, "b"))
	must(t, b.AddEdge(graph.START, "c"))

	g := build(t, b)
	warnings := g.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("Warnings() = %v, want one", warnings)
	}
	w := warnings[0]
	if w.Field != "answer" || w.Source != graph.START || !slices.Equal(w.Nodes, []string{"a", "b"}) {
		t.Errorf("warning = %+v", w)
	}
}

func TestBuild_WarningEvents(t *testing.T) {
	rec := &recorder{}
	b := graph.NewWithObserver(graphConfig("warn"), rec)
	must(t, b.AddNodeFunc("a", set("answer", "a"), graph.Writes("answer")))
	must(t, b.AddNodeFunc("b", set("answer", "b"), graph.Writes("answer")))
	must(t, b.AddEdge(graph.START, "a"))
	must(t, b.AddEdge(graph.START, "b"))
	build(t, b)

	if got := len(rec.ofType(graph.EventBuildWarning)); got != 1 {
		t.Errorf("build.warning events = %d, want 1", got)
	}
	if got := len(rec.ofType(graph.EventBuildComplete)); got != 1 {
		t.Errorf("build.complete events = %d, want 1", got)
	}
}

func TestGraph_Describe(t *testing.T) {
	b := newBuilder("describe")
	must(t, b.Declare("messages", state.Append))
	must(t, b.AddNodeFunc("router", set("route", "x")))
	must(t, b.AddNodeFunc("x", set("out", "x")))
	must(t, b.AddNodeFunc("y", set("out", "y")))
	must(t, b.SetEntry("router"))
	must(t, b.AddConditionalEdge("router", func(s state.State) string { return state.GetString(s, "route") },
		map[string]string{"x": "x", "y": "y"}, graph.WithDefault("x")))
	must(t, b.AddEdge("x", graph.END))
	must(t, b.AddEdge("y", graph.END))

	g := build(t, b)

	if g.Name() != "describe" {
		t.Errorf("Name() = %q", g.Name())
	}
	if got := g.Nodes(); !slices.Equal(got, []string{"router", "x", "y"}) {
		t.Errorf("Nodes() = %v", got)
	}

	edges := g.Edges()
	var conditional int
	for _, e := range edges {
		if e.Kind == graph.EdgeConditional {
			conditional++
		}
	}
	if len(edges) != 6 || conditional != 3 {
		t.Errorf("Edges() = %+v", edges)
	}

	if p := g.Fields()["messages"]; p != state.Append {
		t.Errorf("Fields()[messages] = %v", p)
	}
}
