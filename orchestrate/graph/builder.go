package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

type plainEdge struct {
	source string
	target string
}

type joinEdge struct {
	sources []string
	target  string
}

// Builder assembles nodes, edges, and field policies into a Graph. A Builder
// is not safe for concurrent use; the Graph it builds is.
//
// Example:
//
//	b := graph.NewWithObserver(config.DefaultGraphConfig("chain"), observer)
//	b.Declare("messages", state.Append)
//	b.AddNodeFunc("outline", outline)
//	b.AddNodeFunc("draft", draft)
//	b.SetEntry("outline")
//	b.AddEdge("outline", "draft")
//	b.AddEdge("draft", graph.END)
//	g, err := b.Build()
type Builder struct {
	cfg      config.GraphConfig
	observer observability.Observer
	schema   *state.Schema

	nodes        map[string]*nodeSpec
	order        []string
	edges        []plainEdge
	joins        []joinEdge
	conditionals map[string]*conditional
	entry        string
	built        bool
}

// New creates a Builder, resolving cfg.Observer from the observability
// registry.
func New(cfg config.GraphConfig) (*Builder, error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}
	return NewWithObserver(cfg, observer), nil
}

// NewWithObserver creates a Builder with an explicit observer. A nil
// observer discards events.
func NewWithObserver(cfg config.GraphConfig, observer observability.Observer) *Builder {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = config.DefaultGraphConfig(cfg.Name).MaxSteps
	}

	return &Builder{
		cfg:          cfg,
		observer:     observer,
		schema:       state.NewSchema(),
		nodes:        make(map[string]*nodeSpec),
		conditionals: make(map[string]*conditional),
	}
}

// Declare registers a field's merge policy. See state.Schema.Declare.
func (b *Builder) Declare(field string, policy state.Policy) error {
	return b.schema.Declare(field, policy)
}

// AddNode registers a node under a unique id. Declaration order is the
// order in which same-step updates are applied.
func (b *Builder) AddNode(id string, node Node, opts ...NodeOption) error {
	if b.built {
		return ErrBuilt
	}
	if id == "" {
		return ErrEmptyID
	}
	if id == START || id == END {
		return fmt.Errorf("%w: %s", ErrReservedID, id)
	}
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNilNode, id)
	}
	if _, exists := b.nodes[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}

	spec := &nodeSpec{id: id, node: node}
	for _, opt := range opts {
		opt(spec)
	}

	b.nodes[id] = spec
	b.order = append(b.order, id)
	return nil
}

// AddNodeFunc registers a function as a node.
func (b *Builder) AddNodeFunc(id string, fn func(context.Context, state.State) (state.Update, error), opts ...NodeOption) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNilNode, id)
	}
	return b.AddNode(id, NodeFunc(fn), opts...)
}

// AddEdge adds an unconditional edge. The source may be START and the
// target may be END. Endpoint existence is checked by Build.
func (b *Builder) AddEdge(source, target string) error {
	if b.built {
		return ErrBuilt
	}
	if target == "" {
		return fmt.Errorf("%w: edge target", ErrEmptyID)
	}
	if err := checkEndpoints(source, target); err != nil {
		return err
	}

	edge := plainEdge{source: source, target: target}
	if slices.Contains(b.edges, edge) {
		return fmt.Errorf("%w: %s -> %s", ErrDuplicateEdge, source, target)
	}

	b.edges = append(b.edges, edge)
	return nil
}

// AddJoin adds a strict barrier: target runs only after every source has
// completed. If any source can no longer complete, target is blocked for
// the rest of the run and reported as an unmet join.
func (b *Builder) AddJoin(sources []string, target string) error {
	if b.built {
		return ErrBuilt
	}
	if target == "" {
		return fmt.Errorf("%w: join target", ErrEmptyID)
	}
	if len(sources) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyJoin, target)
	}

	seen := make(map[string]bool, len(sources))
	for _, source := range sources {
		if err := checkEndpoints(source, target); err != nil {
			return err
		}
		if seen[source] {
			return fmt.Errorf("%w: %s -> %s", ErrDuplicateEdge, source, target)
		}
		seen[source] = true
	}

	b.joins = append(b.joins, joinEdge{sources: slices.Clone(sources), target: target})
	return nil
}

// AddConditionalEdge routes from source to one of labels' targets, chosen by
// router after source completes. A label missing from the map fails the run
// with a RoutingError unless WithDefault is given. Targets may be END.
func (b *Builder) AddConditionalEdge(source string, router Router, labels map[string]string, opts ...ConditionalOption) error {
	if b.built {
		return ErrBuilt
	}
	if router == nil {
		return fmt.Errorf("%w: %s", ErrNilRouter, source)
	}
	if err := checkEndpoints(source, ""); err != nil {
		return err
	}
	if source == START {
		return fmt.Errorf("%w: conditional edges must leave a node", ErrReservedID)
	}
	if _, exists := b.conditionals[source]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConditional, source)
	}

	c := &conditional{
		source: source,
		router: router,
		labels: make(map[string]string, len(labels)),
	}
	for label, target := range labels {
		if target == START {
			return ErrEdgeToStart
		}
		c.labels[label] = target
	}
	for _, opt := range opts {
		opt(c)
	}

	b.conditionals[source] = c
	return nil
}

// SetEntry sets the entry node. It is shorthand for AddEdge(START, id);
// further entry edges for fan-out from the start use AddEdge(START, ...).
func (b *Builder) SetEntry(id string) error {
	if b.entry != "" {
		return fmt.Errorf("%w: %s", ErrEntryAlreadySet, b.entry)
	}
	if id == "" {
		return ErrEmptyID
	}
	if err := b.AddEdge(START, id); err != nil {
		return err
	}
	b.entry = id
	return nil
}

func checkEndpoints(source, target string) error {
	if source == "" {
		return fmt.Errorf("%w: edge source", ErrEmptyID)
	}
	if source == END {
		return ErrEdgeFromEnd
	}
	if target == START {
		return ErrEdgeToStart
	}
	return nil
}
