package graph

import "github.com/tailored-agentic-units/stategraph/observability"

const (
	// Build
	EventBuildComplete observability.EventType = "build.complete"
	EventBuildWarning  observability.EventType = "build.warning"

	// Run lifecycle
	EventGraphStart    observability.EventType = "graph.start"
	EventGraphComplete observability.EventType = "graph.complete"
	EventGraphAborted  observability.EventType = "graph.aborted"
	EventStepStart     observability.EventType = "step.start"
	EventStepComplete  observability.EventType = "step.complete"

	// Nodes and routing
	EventNodeStart     observability.EventType = "node.start"
	EventNodeComplete  observability.EventType = "node.complete"
	EventNodeUnreached observability.EventType = "node.unreached"
	EventRouteSelect   observability.EventType = "route.select"
	EventStateConflict observability.EventType = "state.conflict"
)
