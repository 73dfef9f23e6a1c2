package graph

import (
	"maps"
	"slices"

	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

// Virtual endpoints. START is the source of entry edges and END the target
// that finishes a branch; neither is an executable node.
const (
	START = "__start__"
	END   = "__end__"
)

// Router selects a label for a conditional edge from the state produced by
// the step in which its source completed.
type Router func(s state.State) string

// ConditionalOption configures a conditional edge.
type ConditionalOption func(*conditional)

// WithDefault routes labels missing from the label map to target instead of
// failing the run with a RoutingError.
func WithDefault(target string) ConditionalOption {
	return func(c *conditional) {
		c.fallback = target
		c.hasFallback = true
	}
}

type conditional struct {
	source      string
	router      Router
	labels      map[string]string
	fallback    string
	hasFallback bool
}

// targets returns the distinct targets the edge can select, in label order
// followed by the default.
func (c *conditional) targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, label := range slices.Sorted(maps.Keys(c.labels)) {
		target := c.labels[label]
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	if c.hasFallback && !seen[c.fallback] {
		out = append(out, c.fallback)
	}
	return out
}

func (c *conditional) labelNames() []string {
	return slices.Sorted(maps.Keys(c.labels))
}

// resolve maps a router label to its target.
func (c *conditional) resolve(label string) (string, bool, bool) {
	if target, ok := c.labels[label]; ok {
		return target, false, true
	}
	if c.hasFallback {
		return c.fallback, true, true
	}
	return "", false, false
}

// EdgeKind classifies an edge in a graph description.
type EdgeKind string

const (
	EdgePlain       EdgeKind = "plain"
	EdgeJoin        EdgeKind = "join"
	EdgeConditional EdgeKind = "conditional"
)

// EdgeInfo describes one edge of a built graph.
type EdgeInfo struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Label  string   `json:"label,omitempty"`
}

// record is one incoming dependency of a target node. Plain edges produce one
// record, joins one strict record per source, and conditional edges one
// record per distinct target.
type record struct {
	source string
	target string
	strict bool
}
