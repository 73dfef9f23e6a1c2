package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tailored-agentic-units/stategraph"

// Event types that open and close spans. They mirror the run lifecycle
// events emitted by the graph executor.
const (
	spanRunStart     EventType = "graph.start"
	spanRunComplete  EventType = "graph.complete"
	spanRunAborted   EventType = "graph.aborted"
	spanNodeStart    EventType = "node.start"
	spanNodeComplete EventType = "node.complete"
)

type openSpan struct {
	ctx  context.Context
	span trace.Span
}

// TraceObserver converts run lifecycle events into OpenTelemetry spans. A
// run becomes a root span keyed by its run_id and every node invocation a
// child span. Other events carrying a run_id are recorded as span events on
// the run span.
type TraceObserver struct {
	provider trace.TracerProvider
	mu       sync.Mutex
	spans    map[string]openSpan
}

// NewTraceObserver creates a TraceObserver. A nil provider resolves to the
// global provider at event time, so InitTracing may run after registration.
func NewTraceObserver(provider trace.TracerProvider) *TraceObserver {
	return &TraceObserver{
		provider: provider,
		spans:    make(map[string]openSpan),
	}
}

func (o *TraceObserver) tracer() trace.Tracer {
	provider := o.provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return provider.Tracer(tracerName)
}

func (o *TraceObserver) OnEvent(ctx context.Context, event Event) {
	runID, _ := event.Data["run_id"].(string)
	if runID == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Type {
	case spanRunStart:
		spanCtx, span := o.tracer().Start(ctx, "graph "+event.Source,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithTimestamp(event.Timestamp),
			trace.WithAttributes(eventAttributes(event.Data)...),
		)
		o.spans[runID] = openSpan{ctx: spanCtx, span: span}

	case spanNodeStart:
		node, _ := event.Data["node"].(string)
		parent := ctx
		if run, ok := o.spans[runID]; ok {
			parent = run.ctx
		}
		spanCtx, span := o.tracer().Start(parent, "node "+node,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithTimestamp(event.Timestamp),
			trace.WithAttributes(eventAttributes(event.Data)...),
		)
		o.spans[nodeKey(runID, node)] = openSpan{ctx: spanCtx, span: span}

	case spanNodeComplete:
		node, _ := event.Data["node"].(string)
		key := nodeKey(runID, node)
		if open, ok := o.spans[key]; ok {
			delete(o.spans, key)
			endSpan(open.span, event)
		}

	case spanRunComplete, spanRunAborted:
		prefix := runID + "/"
		for key, open := range o.spans {
			if strings.HasPrefix(key, prefix) {
				delete(o.spans, key)
				endSpan(open.span, event)
			}
		}
		if open, ok := o.spans[runID]; ok {
			delete(o.spans, runID)
			open.span.SetAttributes(eventAttributes(event.Data)...)
			endSpan(open.span, event)
		}

	default:
		if open, ok := o.spans[runID]; ok {
			open.span.AddEvent(string(event.Type),
				trace.WithTimestamp(event.Timestamp),
				trace.WithAttributes(eventAttributes(event.Data)...),
			)
		}
	}
}

func nodeKey(runID, node string) string {
	return runID + "/" + node
}

func endSpan(span trace.Span, event Event) {
	if msg, ok := event.Data["error"].(string); ok && msg != "" {
		span.RecordError(errors.New(msg))
		span.SetStatus(codes.Error, msg)
	} else if event.Type == spanRunAborted {
		span.SetStatus(codes.Error, "run aborted")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(event.Timestamp))
}

func eventAttributes(data map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case []string:
			attrs = append(attrs, attribute.StringSlice(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attrs
}

// InitTracing installs a global tracer provider that writes spans to w with
// the stdout exporter. The returned function flushes and shuts the provider
// down.
func InitTracing(ctx context.Context, serviceName string, w io.Writer) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
