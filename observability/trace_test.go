package observability_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tailored-agentic-units/stategraph/observability"
)

func newTraceObserver() (*observability.TraceObserver, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return observability.NewTraceObserver(provider), exporter
}

func emit(obs observability.Observer, typ observability.EventType, data map[string]any) {
	obs.OnEvent(context.Background(), observability.Event{
		Type:      typ,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "routing",
		Data:      data,
	})
}

func TestTraceObserver_RunAndNodeSpans(t *testing.T) {
	obs, exporter := newTraceObserver()

	emit(obs, "graph.start", map[string]any{"run_id": "r1"})
	emit(obs, "node.start", map[string]any{"run_id": "r1", "node": "router", "step": 0})
	emit(obs, "node.complete", map[string]any{"run_id": "r1", "node": "router"})
	emit(obs, "route.select", map[string]any{"run_id": "r1", "source": "router", "label": "health"})
	emit(obs, "graph.complete", map[string]any{"run_id": "r1", "steps": 1})

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}

	node, run := spans[0], spans[1]
	if node.Name != "node router" {
		t.Errorf("node span name = %q, want %q", node.Name, "node router")
	}
	if run.Name != "graph routing" {
		t.Errorf("run span name = %q, want %q", run.Name, "graph routing")
	}
	if node.Parent.SpanID() != run.SpanContext.SpanID() {
		t.Error("node span is not a child of the run span")
	}
	if len(run.Events) != 1 || run.Events[0].Name != "route.select" {
		t.Errorf("run span events = %v, want one route.select", run.Events)
	}
	if run.Status.Code != codes.Ok {
		t.Errorf("run span status = %v, want Ok", run.Status.Code)
	}
}

func TestTraceObserver_AbortClosesOpenSpans(t *testing.T) {
	obs, exporter := newTraceObserver()

	emit(obs, "graph.start", map[string]any{"run_id": "r2"})
	emit(obs, "node.start", map[string]any{"run_id": "r2", "node": "a"})
	emit(obs, "node.start", map[string]any{"run_id": "r2", "node": "b"})
	emit(obs, "node.complete", map[string]any{"run_id": "r2", "node": "a", "error": "boom"})
	emit(obs, "graph.aborted", map[string]any{"run_id": "r2", "error": "node a failed"})

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("exported %d spans, want 3", len(spans))
	}
	for _, span := range spans {
		if span.Status.Code != codes.Error {
			t.Errorf("span %q status = %v, want Error", span.Name, span.Status.Code)
		}
	}
}

func TestTraceObserver_IgnoresEventsWithoutRunID(t *testing.T) {
	obs, exporter := newTraceObserver()

	emit(obs, "graph.start", map[string]any{"name": "no-run"})
	emit(obs, "graph.complete", nil)

	if got := len(exporter.GetSpans()); got != 0 {
		t.Errorf("exported %d spans, want 0", got)
	}
}
