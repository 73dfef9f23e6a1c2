package graph

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

// DefaultLabel is the label shown for a conditional edge's default route in
// Edges.
const DefaultLabel = "*"

// Warning is a build-time diagnostic for fan-out siblings that declare
// writes to the same Replace field.
type Warning struct {
	Source string   `json:"source"`
	Field  string   `json:"field"`
	Nodes  []string `json:"nodes"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s fans out to %s, which all replace %q",
		w.Source, strings.Join(w.Nodes, ", "), w.Field)
}

type outgoing struct {
	records     []int
	branches    map[string]int
	branchOrder []string
}

// Graph is a validated, immutable state graph. It holds no per-run state,
// so one Graph can serve any number of concurrent Run calls.
type Graph struct {
	name            string
	observer        observability.Observer
	maxSteps        int
	timeout         time.Duration
	failOnUnmetJoin bool

	schema       *state.Schema
	nodes        map[string]Node
	order        []string
	index        map[string]int
	edges        []EdgeInfo
	conditionals map[string]*conditional
	warnings     []Warning

	records  []record
	incoming map[string][]int
	outgoing map[string]*outgoing
}

func (g *Graph) Name() string {
	return g.name
}

// Nodes returns node ids in declaration order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Edges describes every declared edge. Conditional edges appear once per
// label, plus once with DefaultLabel when a default is set.
func (g *Graph) Edges() []EdgeInfo {
	return slices.Clone(g.edges)
}

func (g *Graph) Warnings() []Warning {
	return slices.Clone(g.warnings)
}

// Fields returns the declared state fields and their policies.
func (g *Graph) Fields() map[string]state.Policy {
	fields := make(map[string]state.Policy)
	for _, field := range g.schema.Fields() {
		fields[field] = g.schema.Policy(field)
	}
	return fields
}
