// Package server exposes the graph catalog over Connect. Every procedure
// takes and returns a google.protobuf.Struct, so the service is usable from
// any Connect, gRPC, or plain HTTP/JSON client without generated stubs.
//
//	svc, err := server.New(cfg, server.WithManifest(m))
//	err = svc.Serve(ctx)
package server

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/stategraph/agents"
	"github.com/tailored-agentic-units/stategraph/manifest"
	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/runstore"
)

// GraphEntry is one served graph.
type GraphEntry struct {
	Name        string   `json:"name"`
	Ref         string   `json:"ref"`
	Description string   `json:"description,omitempty"`
	Nodes       []string `json:"nodes,omitempty"`
}

// GraphDescription is the structure of a built graph.
type GraphDescription struct {
	Name     string            `json:"name"`
	Nodes    []string          `json:"nodes"`
	Edges    []graph.EdgeInfo  `json:"edges"`
	Fields   map[string]string `json:"fields,omitempty"`
	Warnings []graph.Warning   `json:"warnings,omitempty"`
}

// Option configures a Service after config-driven initialization.
type Option func(*Service)

// WithCatalog replaces the default catalog of built-in graphs.
func WithCatalog(c *agents.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithStore replaces the config-created run store.
func WithStore(store runstore.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithManifest restricts the served graphs to those the manifest names.
func WithManifest(m *manifest.Manifest) Option {
	return func(s *Service) { s.manifest = m }
}

// WithObserver replaces the observer resolved from the graph config.
func WithObserver(o observability.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// Service runs catalog graphs on request and records every run.
type Service struct {
	cfg      Config
	catalog  *agents.Catalog
	store    runstore.Store
	manifest *manifest.Manifest
	observer observability.Observer
}

// New creates a Service from configuration. Options are applied first; any
// collaborator they leave unset is created from cfg.
func New(cfg *Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: *cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.observer == nil {
		observer, err := observability.GetObserver(cfg.Graph.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		s.observer = observer
	}
	if s.catalog == nil {
		s.catalog = agents.DefaultCatalog(agents.Deps{Observer: s.observer}, cfg.Graph)
	}
	if s.manifest != nil {
		if err := s.manifest.Validate(s.catalog.Has); err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		store, err := runstore.New(&cfg.Runstore)
		if err != nil {
			return nil, fmt.Errorf("failed to create run store: %w", err)
		}
		s.store = store
	}

	return s, nil
}

// Close releases the run store.
func (s *Service) Close() error {
	return s.store.Close()
}

// resolve maps a served graph name to its catalog name.
func (s *Service) resolve(name string) (string, error) {
	if name == "" {
		return "", ErrMissingGraph
	}
	if s.manifest != nil {
		return s.manifest.Resolve(name)
	}
	if !s.catalog.Has(name) {
		return "", fmt.Errorf("%w: %s", agents.ErrGraphNotFound, name)
	}
	return name, nil
}

func (s *Service) entries() []GraphEntry {
	infos := make(map[string]agents.GraphInfo)
	for _, info := range s.catalog.List() {
		infos[info.Name] = info
	}

	if s.manifest == nil {
		entries := make([]GraphEntry, 0, len(infos))
		for _, name := range s.catalog.Names() {
			info := infos[name]
			entries = append(entries, GraphEntry{Name: name, Ref: name, Description: info.Description, Nodes: info.Nodes})
		}
		return entries
	}

	var entries []GraphEntry
	for _, name := range s.manifest.Names() {
		ref, err := s.manifest.Resolve(name)
		if err != nil {
			continue
		}
		info := infos[ref]
		entries = append(entries, GraphEntry{Name: name, Ref: ref, Description: info.Description, Nodes: info.Nodes})
	}
	return entries
}

// ListGraphs returns {"graphs": [GraphEntry...]}.
func (s *Service) ListGraphs(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	out, err := toStruct(map[string]any{"graphs": s.entries()})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(out), nil
}

// DescribeGraph takes {"graph": name} and returns a GraphDescription.
func (s *Service) DescribeGraph(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	g, err := s.graph(stringField(req.Msg, "graph"))
	if err != nil {
		return nil, connectError(err)
	}

	desc := GraphDescription{
		Name:     g.Name(),
		Nodes:    g.Nodes(),
		Edges:    g.Edges(),
		Fields:   make(map[string]string),
		Warnings: g.Warnings(),
	}
	for field, policy := range g.Fields() {
		desc.Fields[field] = policy.String()
	}

	out, err := toStruct(desc)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(out), nil
}

func (s *Service) graph(name string) (*graph.Graph, error) {
	ref, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return s.catalog.Get(ref)
}

// RunGraph takes {"graph": name, "input": string | object}, runs the graph
// to completion, and returns its runstore.Record. Failed runs are recorded
// too and reported with a Connect error.
func (s *Service) RunGraph(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	name := stringField(req.Msg, "graph")
	g, err := s.graph(name)
	if err != nil {
		return nil, connectError(err)
	}

	initial, err := requestInput(req.Msg)
	if err != nil {
		return nil, connectError(err)
	}

	started := time.Now()
	res, err := g.Run(ctx, initial)

	var rec runstore.Record
	if err != nil {
		rec = runstore.FromError(g.Name(), err, started)
	} else {
		rec = runstore.FromResult(res, started)
	}
	s.save(ctx, rec)

	if err != nil {
		return nil, connectError(err)
	}

	out, err := toStruct(rec)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(out), nil
}

func requestInput(msg *structpb.Struct) (map[string]any, error) {
	var raw map[string]any
	switch v := msg.AsMap()["input"].(type) {
	case nil:
		raw = map[string]any{}
	case string:
		raw = map[string]any{"input": v}
	case map[string]any:
		raw = v
	default:
		return nil, ErrInvalidInput
	}

	initial, err := agents.PrepareInput(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return initial, nil
}

// save records rec even when the request context has been cancelled.
func (s *Service) save(ctx context.Context, rec runstore.Record) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Save(ctx, rec); err != nil {
		observability.Emit(ctx, s.observer, EventSaveError, observability.LevelError, "server.RunGraph", map[string]any{
			"run_id": rec.RunID,
			"error":  err.Error(),
		})
		return
	}
	observability.Emit(ctx, s.observer, EventRunSaved, observability.LevelVerbose, "server.RunGraph", map[string]any{
		"run_id": rec.RunID,
		"graph":  rec.Graph,
		"status": string(rec.Status),
	})
}

// GetRun takes {"run_id": id} and returns the recorded run.
func (s *Service) GetRun(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	runID := stringField(req.Msg, "run_id")
	if runID == "" {
		return nil, connectError(ErrMissingRunID)
	}

	rec, err := s.store.Get(ctx, runID)
	if err != nil {
		return nil, connectError(err)
	}

	out, err := toStruct(rec)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(out), nil
}

// ListRuns takes {"graph": name, "limit": n}, both optional, and returns
// {"runs": [Record...]} newest first.
func (s *Service) ListRuns(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	graphName := stringField(req.Msg, "graph")
	if graphName != "" && s.manifest != nil {
		ref, err := s.manifest.Resolve(graphName)
		if err != nil {
			return nil, connectError(err)
		}
		graphName = ref
	}

	records, err := s.store.List(ctx, graphName, intField(req.Msg, "limit"))
	if err != nil {
		return nil, connectError(err)
	}

	out, err := toStruct(map[string]any{"runs": records})
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(out), nil
}
