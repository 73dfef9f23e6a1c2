package graph

import (
	"context"

	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
)

// Node is a single unit of graph execution. Execute receives an immutable
// snapshot and returns a partial update; an empty update is a valid "no
// contribution". Nodes must not retain or mutate values read from the
// snapshot.
type Node interface {
	Execute(ctx context.Context, s state.State) (state.Update, error)
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc func(ctx context.Context, s state.State) (state.Update, error)

// Execute calls f(ctx, s).
func (f NodeFunc) Execute(ctx context.Context, s state.State) (state.Update, error) {
	return f(ctx, s)
}

// NodeOption configures a node at registration.
type NodeOption func(*nodeSpec)

// Writes declares the fields a node may write. It is optional and only
// feeds the build-time check for fan-out siblings that write the same
// Replace field.
func Writes(fields ...string) NodeOption {
	return func(n *nodeSpec) {
		n.writes = append(n.writes, fields...)
	}
}

type nodeSpec struct {
	id     string
	node   Node
	writes []string
}

// RunInfo identifies the invocation a node is executing in.
type RunInfo struct {
	RunID string
	Graph string
	Step  int
	Node  string
}

type runInfoKey struct{}

// RunInfoFrom returns the RunInfo attached to a node's context.
func RunInfoFrom(ctx context.Context) (RunInfo, bool) {
	info, ok := ctx.Value(runInfoKey{}).(RunInfo)
	return info, ok
}

func withRunInfo(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}
