package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/stategraph/runstore"
)

type structClient = connect.Client[structpb.Struct, structpb.Struct]

// Client calls a graph server.
type Client struct {
	listGraphs    *structClient
	describeGraph *structClient
	runGraph      *structClient
	getRun        *structClient
	listRuns      *structClient
}

// NewClient creates a Client for the server at baseURL
// (e.g. "http://localhost:2024").
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		listGraphs:    connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ListGraphsProcedure, opts...),
		describeGraph: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+DescribeGraphProcedure, opts...),
		runGraph:      connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+RunGraphProcedure, opts...),
		getRun:        connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+GetRunProcedure, opts...),
		listRuns:      connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ListRunsProcedure, opts...),
	}
}

func call[T any](ctx context.Context, c *structClient, req map[string]any) (T, error) {
	var out T

	msg, err := toStruct(req)
	if err != nil {
		return out, err
	}

	res, err := c.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return out, err
	}

	err = fromStruct(res.Msg, &out)
	return out, err
}

func (c *Client) ListGraphs(ctx context.Context) ([]GraphEntry, error) {
	out, err := call[struct {
		Graphs []GraphEntry `json:"graphs"`
	}](ctx, c.listGraphs, map[string]any{})
	return out.Graphs, err
}

func (c *Client) DescribeGraph(ctx context.Context, name string) (GraphDescription, error) {
	return call[GraphDescription](ctx, c.describeGraph, map[string]any{"graph": name})
}

// RunGraph runs name with input, which may be a string or an object.
func (c *Client) RunGraph(ctx context.Context, name string, input any) (runstore.Record, error) {
	return call[runstore.Record](ctx, c.runGraph, map[string]any{"graph": name, "input": input})
}

func (c *Client) GetRun(ctx context.Context, runID string) (runstore.Record, error) {
	return call[runstore.Record](ctx, c.getRun, map[string]any{"run_id": runID})
}

func (c *Client) ListRuns(ctx context.Context, graphName string, limit int) ([]runstore.Record, error) {
	out, err := call[struct {
		Runs []runstore.Record `json:"runs"`
	}](ctx, c.listRuns, map[string]any{"graph": graphName, "limit": limit})
	return out.Runs, err
}
