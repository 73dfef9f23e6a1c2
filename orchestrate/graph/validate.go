package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

// Build validates the topology and returns an immutable Graph. All
// violations are reported together, joined with errors.Join; each is a
// *ValidationError whose Kind matches with errors.Is. A Builder builds at
// most one Graph.
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		return nil, ErrBuilt
	}

	if errs := b.checkStructure(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	successors := b.successors()
	var errs []error
	errs = append(errs, b.checkReachable(successors)...)
	errs = append(errs, b.checkAcyclic(successors)...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	b.built = true
	g := b.compile()

	ctx := context.Background()
	for _, w := range g.warnings {
		observability.Emit(ctx, g.observer, EventBuildWarning, observability.LevelWarning, g.name, map[string]any{
			"field":  w.Field,
			"nodes":  w.Nodes,
			"source": w.Source,
		})
	}
	observability.Emit(ctx, g.observer, EventBuildComplete, observability.LevelVerbose, g.name, map[string]any{
		"nodes":    len(g.order),
		"records":  len(g.records),
		"warnings": len(g.warnings),
	})

	return g, nil
}

func (b *Builder) hasNode(id string) bool {
	_, ok := b.nodes[id]
	return ok
}

func (b *Builder) checkStructure() []error {
	var errs []error

	hasEntry := false
	for _, e := range b.edges {
		if e.source == START {
			hasEntry = true
			break
		}
	}
	if !hasEntry {
		errs = append(errs, &ValidationError{Kind: ErrMissingEntry, Detail: "no edge leaves START"})
	}

	checkSource := func(source, target string) {
		if source != START && !b.hasNode(source) {
			errs = append(errs, &ValidationError{
				Kind:   ErrDanglingEdge,
				Node:   source,
				Detail: fmt.Sprintf("edge %s -> %s leaves an undefined node", source, target),
			})
		}
	}
	checkTarget := func(source, target string) {
		if target != END && !b.hasNode(target) {
			errs = append(errs, &ValidationError{
				Kind:   ErrDanglingEdge,
				Node:   target,
				Detail: fmt.Sprintf("edge %s -> %s enters an undefined node", source, target),
			})
		}
	}

	for _, e := range b.edges {
		checkSource(e.source, e.target)
		checkTarget(e.source, e.target)
	}

	for _, j := range b.joins {
		for _, source := range j.sources {
			checkSource(source, j.target)
		}
		if j.target == END || !b.hasNode(j.target) {
			errs = append(errs, &ValidationError{
				Kind:   ErrDanglingEdge,
				Node:   j.target,
				Detail: "join target must be a defined node",
			})
		}
	}

	for _, source := range b.conditionalSources() {
		c := b.conditionals[source]
		if !b.hasNode(source) {
			errs = append(errs, &ValidationError{
				Kind:   ErrDanglingEdge,
				Node:   source,
				Detail: "conditional edge leaves an undefined node",
			})
		}
		if len(c.labels) == 0 {
			errs = append(errs, &ValidationError{Kind: ErrEmptyLabelMap, Node: source})
		}
		for _, label := range c.labelNames() {
			target := c.labels[label]
			if target != END && !b.hasNode(target) {
				errs = append(errs, &ValidationError{
					Kind:   ErrDanglingEdge,
					Node:   target,
					Detail: fmt.Sprintf("label %q of %s routes to an undefined node", label, source),
				})
			}
		}
		if c.hasFallback && c.fallback != END && !b.hasNode(c.fallback) {
			errs = append(errs, &ValidationError{
				Kind:   ErrInvalidDefault,
				Node:   source,
				Detail: fmt.Sprintf("default target %q is not a node", c.fallback),
			})
		}
	}

	return errs
}

func (b *Builder) conditionalSources() []string {
	var sources []string
	for _, id := range b.order {
		if _, ok := b.conditionals[id]; ok {
			sources = append(sources, id)
		}
	}
	// conditionals on undefined sources, sorted for stable reporting
	var dangling []string
	for source := range b.conditionals {
		if !b.hasNode(source) {
			dangling = append(dangling, source)
		}
	}
	slices.Sort(dangling)
	return append(sources, dangling...)
}

// successors lists every possible next hop per source in a fixed order:
// plain edges, joins, then conditional targets.
func (b *Builder) successors() map[string][]string {
	next := make(map[string][]string)
	add := func(source, target string) {
		if target == END || slices.Contains(next[source], target) {
			return
		}
		next[source] = append(next[source], target)
	}

	for _, e := range b.edges {
		add(e.source, e.target)
	}
	for _, j := range b.joins {
		for _, source := range j.sources {
			add(source, j.target)
		}
	}
	for _, source := range b.order {
		if c, ok := b.conditionals[source]; ok {
			for _, target := range c.targets() {
				add(source, target)
			}
		}
	}
	return next
}

func (b *Builder) checkReachable(successors map[string][]string) []error {
	reached := map[string]bool{START: true}
	queue := []string{START}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range successors[id] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	var errs []error
	for _, id := range b.order {
		if !reached[id] {
			errs = append(errs, &ValidationError{Kind: ErrUnreachableNode, Node: id})
		}
	}
	return errs
}

// checkAcyclic reports every back edge found by a depth-first walk in
// declaration order, with the cycle it closes.
func (b *Builder) checkAcyclic(successors map[string][]string) []error {
	const (
		unvisited = iota
		active
		finished
	)
	color := make(map[string]int, len(b.order))
	var path []string
	var errs []error

	var visit func(id string)
	visit = func(id string) {
		color[id] = active
		path = append(path, id)
		for _, next := range successors[id] {
			switch color[next] {
			case unvisited:
				visit(next)
			case active:
				start := slices.Index(path, next)
				cycle := append(slices.Clone(path[start:]), next)
				errs = append(errs, &ValidationError{
					Kind:   ErrCycle,
					Node:   next,
					Detail: strings.Join(cycle, " -> "),
				})
			}
		}
		path = path[:len(path)-1]
		color[id] = finished
	}

	for _, id := range b.order {
		if color[id] == unvisited {
			visit(id)
		}
	}
	return errs
}

// compile turns edges into per-target dependency records and per-source
// outgoing lists, the structures the executor resolves during a run.
func (b *Builder) compile() *Graph {
	g := &Graph{
		name:            b.cfg.Name,
		observer:        b.observer,
		maxSteps:        b.cfg.MaxSteps,
		timeout:         b.cfg.Timeout.Std(),
		failOnUnmetJoin: b.cfg.FailOnUnmetJoin,
		schema:          b.schema.Clone(),
		nodes:           make(map[string]Node, len(b.nodes)),
		order:           slices.Clone(b.order),
		index:           make(map[string]int, len(b.order)),
		incoming:        make(map[string][]int),
		outgoing:        make(map[string]*outgoing),
		conditionals:    make(map[string]*conditional, len(b.conditionals)),
	}

	for i, id := range b.order {
		g.nodes[id] = b.nodes[id].node
		g.index[id] = i
	}

	out := func(source string) *outgoing {
		o, ok := g.outgoing[source]
		if !ok {
			o = &outgoing{}
			g.outgoing[source] = o
		}
		return o
	}
	addRecord := func(source, target string, strict bool) int {
		id := len(g.records)
		g.records = append(g.records, record{source: source, target: target, strict: strict})
		g.incoming[target] = append(g.incoming[target], id)
		return id
	}

	for _, e := range b.edges {
		g.edges = append(g.edges, EdgeInfo{Source: e.source, Target: e.target, Kind: EdgePlain})
		if e.target == END {
			continue
		}
		o := out(e.source)
		o.records = append(o.records, addRecord(e.source, e.target, false))
	}

	for _, j := range b.joins {
		for _, source := range j.sources {
			g.edges = append(g.edges, EdgeInfo{Source: source, Target: j.target, Kind: EdgeJoin})
			o := out(source)
			o.records = append(o.records, addRecord(source, j.target, true))
		}
	}

	for _, source := range b.order {
		c, ok := b.conditionals[source]
		if !ok {
			continue
		}
		g.conditionals[source] = c
		for _, label := range c.labelNames() {
			g.edges = append(g.edges, EdgeInfo{Source: source, Target: c.labels[label], Kind: EdgeConditional, Label: label})
		}
		if c.hasFallback {
			g.edges = append(g.edges, EdgeInfo{Source: source, Target: c.fallback, Kind: EdgeConditional, Label: DefaultLabel})
		}

		o := out(source)
		o.branches = make(map[string]int)
		for _, target := range c.targets() {
			if target == END {
				continue
			}
			o.branches[target] = addRecord(source, target, false)
			o.branchOrder = append(o.branchOrder, target)
		}
	}

	g.warnings = b.siblingWarnings()
	return g
}

// siblingWarnings flags nodes started by the same source in the same step
// that declare writes to the same Replace field; only the last declared
// writer's value would survive.
func (b *Builder) siblingWarnings() []Warning {
	fanout := make(map[string][]string)
	var sources []string
	for _, e := range b.edges {
		if e.target == END {
			continue
		}
		if _, seen := fanout[e.source]; !seen {
			sources = append(sources, e.source)
		}
		fanout[e.source] = append(fanout[e.source], e.target)
	}

	var warnings []Warning
	for _, source := range sources {
		siblings := fanout[source]
		if len(siblings) < 2 {
			continue
		}

		writers := make(map[string][]string)
		var fields []string
		for _, id := range b.order {
			if !slices.Contains(siblings, id) {
				continue
			}
			for _, field := range b.nodes[id].writes {
				if b.schema.Policy(field) != state.Replace || slices.Contains(writers[field], id) {
					continue
				}
				if _, seen := writers[field]; !seen {
					fields = append(fields, field)
				}
				writers[field] = append(writers[field], id)
			}
		}

		slices.Sort(fields)
		for _, field := range fields {
			if len(writers[field]) > 1 {
				warnings = append(warnings, Warning{Source: source, Field: field, Nodes: writers[field]})
			}
		}
	}
	return warnings
}
