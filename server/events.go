package server

import "github.com/tailored-agentic-units/stategraph/observability"

// Server event types.
const (
	EventServe     observability.EventType = "server.serve"
	EventShutdown  observability.EventType = "server.shutdown"
	EventRequest   observability.EventType = "server.request"
	EventRunSaved  observability.EventType = "server.run.saved"
	EventSaveError observability.EventType = "server.run.save_error"
)
