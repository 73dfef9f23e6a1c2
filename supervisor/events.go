package supervisor

import "github.com/tailored-agentic-units/stategraph/observability"

// Supervisor event types.
const (
	EventStart  observability.EventType = "supervisor.start"
	EventChange observability.EventType = "supervisor.change"
	EventStop   observability.EventType = "supervisor.stop"
	EventKill   observability.EventType = "supervisor.kill"
	EventExit   observability.EventType = "supervisor.exit"
	EventWatch  observability.EventType = "supervisor.watch"
	EventError  observability.EventType = "supervisor.error"
)
