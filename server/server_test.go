package server_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/stategraph/agents"
	"github.com/tailored-agentic-units/stategraph/manifest"
	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
	"github.com/tailored-agentic-units/stategraph/runstore"
	"github.com/tailored-agentic-units/stategraph/server"
)

func testConfig() *server.Config {
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.Graph.Observer = "noop"
	return &cfg
}

func newTestServer(t *testing.T, opts ...server.Option) (*server.Client, *server.Service) {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), opts...)
}

func newTestServerWithConfig(t *testing.T, cfg *server.Config, opts ...server.Option) (*server.Client, *server.Service) {
	t.Helper()

	opts = append([]server.Option{server.WithObserver(observability.NoOpObserver{})}, opts...)
	svc, err := server.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	ts := httptest.NewServer(svc.Handler())
	t.Cleanup(ts.Close)

	return server.NewClient(ts.Client(), ts.URL), svc
}

func TestListGraphs_Catalog(t *testing.T) {
	client, _ := newTestServer(t)

	graphs, err := client.ListGraphs(context.Background())
	require.NoError(t, err)

	names := make([]string, len(graphs))
	for i, g := range graphs {
		names[i] = g.Name
	}
	assert.Contains(t, names, "echo")
	assert.Contains(t, names, "routing")
	assert.Len(t, graphs, len(agents.Builtin()))
}

func TestListGraphs_Manifest(t *testing.T) {
	m, err := manifest.Parse([]byte(`{"graphs": {"agent": "./agents/echo/agent.py:app", "router": "routing"}}`))
	require.NoError(t, err)

	client, _ := newTestServer(t, server.WithManifest(m))

	graphs, err := client.ListGraphs(context.Background())
	require.NoError(t, err)
	require.Len(t, graphs, 2)
	assert.Equal(t, "agent", graphs[0].Name)
	assert.Equal(t, "echo", graphs[0].Ref)
	assert.Equal(t, "router", graphs[1].Name)
	assert.Equal(t, "routing", graphs[1].Ref)
}

func TestNew_ManifestNamesUnknownGraph(t *testing.T) {
	m, err := manifest.Parse([]byte(`{"graphs": {"agent": "./agents/missing/agent.py:app"}}`))
	require.NoError(t, err)

	_, err = server.New(testConfig(), server.WithManifest(m), server.WithObserver(observability.NoOpObserver{}))
	assert.ErrorIs(t, err, manifest.ErrUnknownGraph)
}

func TestRunGraph_RecordsRun(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	rec, err := client.RunGraph(ctx, "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusCompleted, rec.Status)
	assert.Equal(t, "echo", rec.Graph)
	assert.Equal(t, 1, rec.Steps)
	assert.Equal(t, [][]string{{"agent"}}, rec.Trace)

	msgs, ok := rec.State[agents.FieldMessages].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	last := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", last["role"])
	assert.Equal(t, "Echo: hello", last["content"])

	stored, err := client.GetRun(ctx, rec.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, stored.RunID)
	assert.Equal(t, rec.Trace, stored.Trace)

	runs, err := client.ListRuns(ctx, "echo", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rec.RunID, runs[0].RunID)
}

func TestRunGraph_ObjectInput(t *testing.T) {
	client, _ := newTestServer(t)

	rec, err := client.RunGraph(context.Background(), "tool_agent", map[string]any{"query": "2 + 3 * 4"})
	require.NoError(t, err)

	msgs := rec.State[agents.FieldMessages].([]any)
	last := msgs[len(msgs)-1].(map[string]any)
	assert.Equal(t, "Result: 14", last["content"])
}

func TestRunGraph_DeeplyNestedQuery(t *testing.T) {
	client, _ := newTestServer(t)

	query := strings.Repeat("(", 10000) + "1 + 1"
	rec, err := client.RunGraph(context.Background(), "tool_agent", map[string]any{"query": query})
	require.NoError(t, err)

	msgs := rec.State[agents.FieldMessages].([]any)
	last := msgs[len(msgs)-1].(map[string]any)
	assert.Contains(t, last["content"], "nested deeper")

	_, err = client.ListGraphs(context.Background())
	assert.NoError(t, err)
}

func TestRunGraph_RequestTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestBytes = 1024
	client, _ := newTestServerWithConfig(t, cfg)

	_, err := client.RunGraph(context.Background(), "echo", strings.Repeat("a", 4096))
	require.Error(t, err)
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))

	_, err = client.RunGraph(context.Background(), "echo", "small")
	assert.NoError(t, err)
}

func TestRunGraph_Routing(t *testing.T) {
	client, _ := newTestServer(t)

	rec, err := client.RunGraph(context.Background(), "routing", "what are the symptoms of flu")
	require.NoError(t, err)
	assert.Equal(t, "health", rec.State["route"])

	unreached := make([]string, len(rec.Unreached))
	for i, u := range rec.Unreached {
		unreached[i] = u.Node
		assert.Equal(t, graph.ReasonNotSelected, u.Reason)
	}
	assert.ElementsMatch(t, []string{"tech_specialist", "finance_specialist"}, unreached)
}

func TestRunGraph_Errors(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		graph string
		input any
		code  connect.Code
	}{
		{"missing graph", "", "hi", connect.CodeInvalidArgument},
		{"unknown graph", "nope", "hi", connect.CodeNotFound},
		{"invalid input", "echo", 42, connect.CodeInvalidArgument},
		{"invalid messages", "echo", map[string]any{"messages": "not a list"}, connect.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.RunGraph(ctx, tt.graph, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestRunGraph_FailedRunIsRecorded(t *testing.T) {
	catalog := agents.NewCatalog(agents.Deps{}, config.DefaultGraphConfig(""))
	require.NoError(t, catalog.Register(agents.Definition{
		Name: "broken",
		Wire: func(b *graph.Builder, _ agents.Deps) error {
			if err := b.AddNodeFunc("fail", func(context.Context, state.State) (state.Update, error) {
				return nil, errors.New("boom")
			}); err != nil {
				return err
			}
			if err := b.SetEntry("fail"); err != nil {
				return err
			}
			return b.AddEdge("fail", graph.END)
		},
	}))

	client, _ := newTestServer(t, server.WithCatalog(catalog))
	ctx := context.Background()

	_, err := client.RunGraph(ctx, "broken", "hi")
	require.Error(t, err)
	assert.Equal(t, connect.CodeAborted, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "boom")

	runs, err := client.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runstore.StatusFailed, runs[0].Status)
	assert.Equal(t, "broken", runs[0].Graph)
	assert.Contains(t, runs[0].Error, "boom")
}

func TestGetRun_Errors(t *testing.T) {
	client, _ := newTestServer(t)
	ctx := context.Background()

	_, err := client.GetRun(ctx, "")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = client.GetRun(ctx, "does-not-exist")
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestGetRun_FileStoreRejectsTraversal(t *testing.T) {
	cfg := testConfig()
	cfg.Runstore.Backend = runstore.BackendFile
	cfg.Runstore.Dir = t.TempDir()
	client, _ := newTestServerWithConfig(t, cfg)

	_, err := client.GetRun(context.Background(), "../../etc/passwd")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestDescribeGraph(t *testing.T) {
	client, _ := newTestServer(t)

	desc, err := client.DescribeGraph(context.Background(), "routing")
	require.NoError(t, err)
	assert.Equal(t, "routing", desc.Name)
	assert.Contains(t, desc.Nodes, "router")
	assert.Equal(t, "append", desc.Fields[agents.FieldMessages])

	var conditional int
	for _, e := range desc.Edges {
		if e.Kind == graph.EdgeConditional {
			conditional++
		}
	}
	assert.Positive(t, conditional)
}

func TestHealthz(t *testing.T) {
	_, svc := newTestServer(t)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeListener_Shutdown(t *testing.T) {
	svc, err := server.New(testConfig(), server.WithObserver(observability.NoOpObserver{}))
	require.NoError(t, err)
	defer svc.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.ServeListener(ctx, ln) }()

	client := server.NewClient(http.DefaultClient, "http://"+ln.Addr().String())
	require.Eventually(t, func() bool {
		_, err := client.ListGraphs(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "addr": ":9000",
  "graph": {"max_steps": 50, "timeout": "5s"},
  "runstore": {"backend": "file", "dir": "/tmp/runs"}
}`), 0o644))

	cfg, err := server.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "langgraph.json", cfg.Manifest)
	assert.Equal(t, 50, cfg.Graph.MaxSteps)
	assert.Equal(t, 5*time.Second, cfg.Graph.Timeout.Std())
	assert.Equal(t, "slog", cfg.Graph.Observer)
	assert.Equal(t, runstore.BackendFile, cfg.Runstore.Backend)
	assert.Equal(t, 1000, cfg.Runstore.MaxRecords)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout.Std())
	assert.Equal(t, int64(1<<20), cfg.MaxRequestBytes)

	_, err = server.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
