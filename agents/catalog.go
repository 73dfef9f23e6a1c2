// Package agents defines the example graphs served by graphd: chat-style
// workflows (chaining, sectioning, voting, orchestrator/worker, routing,
// evaluator/optimizer, tool use) built on orchestrate/graph.
//
// Every graph shares a "messages" field with the Append policy holding
// role-tagged protocol.Message values, and reads its collaborators (Model,
// tools) from Deps rather than from package state.
package agents

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/tools"
)

var (
	ErrGraphNotFound = errors.New("graph not found")
	ErrGraphExists   = errors.New("graph already registered")
	ErrEmptyName     = errors.New("graph name is empty")
)

// Deps are the collaborators handed to graph definitions.
type Deps struct {
	Model    Model
	Tools    *tools.Registry
	Observer observability.Observer
}

// Definition describes how to wire one graph.
type Definition struct {
	Name        string
	Description string
	Wire        func(b *graph.Builder, deps Deps) error
}

// GraphInfo summarizes a catalog entry.
type GraphInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Nodes       []string `json:"nodes,omitempty"`
}

// Catalog holds graph definitions and builds each graph on first use. A
// built graph is cached and shared; graphs are safe for concurrent runs.
type Catalog struct {
	mu          sync.Mutex
	deps        Deps
	base        config.GraphConfig
	definitions map[string]Definition
	graphs      map[string]*graph.Graph
}

// NewCatalog creates an empty catalog. base supplies every graph's run
// settings; its Name is replaced by the definition name.
func NewCatalog(deps Deps, base config.GraphConfig) *Catalog {
	if deps.Model == nil {
		deps.Model = NewTemplateModel()
	}
	if deps.Tools == nil {
		deps.Tools = tools.NewBuiltinRegistry()
	}
	return &Catalog{
		deps:        deps,
		base:        base,
		definitions: make(map[string]Definition),
		graphs:      make(map[string]*graph.Graph),
	}
}

// DefaultCatalog returns a catalog holding every built-in graph.
func DefaultCatalog(deps Deps, base config.GraphConfig) *Catalog {
	c := NewCatalog(deps, base)
	for _, def := range Builtin() {
		if err := c.Register(def); err != nil {
			panic(fmt.Sprintf("register %s: %v", def.Name, err))
		}
	}
	return c
}

// Builtin returns the built-in graph definitions.
func Builtin() []Definition {
	return []Definition{
		Echo(),
		Example(),
		PromptChaining(),
		ParallelSectioning(),
		ParallelVoting(),
		OrchestratorWorker(),
		Routing(),
		EvaluatorOptimizer(),
		ToolAgent(),
	}
}

func (c *Catalog) Register(def Definition) error {
	if def.Name == "" {
		return ErrEmptyName
	}
	if def.Wire == nil {
		return fmt.Errorf("%s: definition has no wiring", def.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.definitions[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrGraphExists, def.Name)
	}
	c.definitions[def.Name] = def
	return nil
}

// Get returns the named graph, building it on first access.
func (c *Catalog) Get(name string) (*graph.Graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, registered := c.definitions[name]
	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, name)
	}
	if g, exists := c.graphs[name]; exists {
		return g, nil
	}

	g, err := c.build(def)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph %q: %w", name, err)
	}
	c.graphs[name] = g
	return g, nil
}

func (c *Catalog) build(def Definition) (*graph.Graph, error) {
	cfg := c.base
	cfg.Name = def.Name

	b := graph.NewWithObserver(cfg, c.deps.Observer)
	if err := b.Declare(FieldMessages, messagesPolicy); err != nil {
		return nil, err
	}
	if err := def.Wire(b, c.deps); err != nil {
		return nil, err
	}
	return b.Build()
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.definitions[name]
	return ok
}

// List describes every registered graph, sorted by name. Graphs that have
// been built include their node ids.
func (c *Catalog) List() []GraphInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]GraphInfo, 0, len(c.definitions))
	for name, def := range c.definitions {
		info := GraphInfo{Name: name, Description: def.Description}
		if g, ok := c.graphs[name]; ok {
			info.Nodes = g.Nodes()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Names returns the registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.definitions))
	for name := range c.definitions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Unregister removes a graph and drops its cached build.
func (c *Catalog) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.definitions[name]; !exists {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, name)
	}
	delete(c.definitions, name)
	delete(c.graphs, name)
	return nil
}
