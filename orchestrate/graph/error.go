package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Builder misuse detected when an element is added.
var (
	ErrEmptyID              = errors.New("node id is empty")
	ErrNilNode              = errors.New("node is nil")
	ErrNilRouter            = errors.New("router is nil")
	ErrReservedID           = errors.New("node id is reserved")
	ErrDuplicateNode        = errors.New("node already exists")
	ErrDuplicateEdge        = errors.New("edge already exists")
	ErrDuplicateConditional = errors.New("conditional edge already set for source")
	ErrEdgeFromEnd          = errors.New("edge cannot leave END")
	ErrEdgeToStart          = errors.New("edge cannot enter START")
	ErrEntryAlreadySet      = errors.New("entry already set")
	ErrEmptyJoin            = errors.New("join has no sources")
	ErrBuilt                = errors.New("builder already built")
)

// Validation violations reported by Build, each wrapped in a *ValidationError.
var (
	ErrMissingEntry     = errors.New("missing entry")
	ErrDanglingEdge     = errors.New("dangling edge")
	ErrUnreachableNode  = errors.New("unreachable node")
	ErrEmptyLabelMap    = errors.New("empty label map")
	ErrInvalidDefault   = errors.New("invalid default route")
	ErrCycle            = errors.New("cycle")
	ErrMaxStepsExceeded = errors.New("max steps exceeded")
)

// ValidationError is one violation found by Build. Kind is one of the
// validation sentinels and is what errors.Is matches.
type ValidationError struct {
	Kind   error
	Node   string
	Detail string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("graph validation: ")
	b.WriteString(e.Kind.Error())
	if e.Node != "" {
		fmt.Fprintf(&b, " at %s", e.Node)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// RoutingError reports a router label that is neither declared nor covered
// by a default.
type RoutingError struct {
	Node   string
	Label  string
	Labels []string
	Err    error
}

func (e *RoutingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("routing from %s failed: %v", e.Node, e.Err)
	}
	return fmt.Sprintf("routing from %s: undeclared label %q (declared: %s)",
		e.Node, e.Label, strings.Join(e.Labels, ", "))
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}

// NodeExecutionError reports a node that returned an error, panicked, or
// produced an update its reducers rejected.
type NodeExecutionError struct {
	Node string
	Step int
	Err  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s failed at step %d: %v", e.Node, e.Step, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// UnmetJoinError reports nodes left permanently blocked by a join whose
// required sources never all completed. It is only returned when the graph
// is configured to fail on unmet joins.
type UnmetJoinError struct {
	Nodes []string
}

func (e *UnmetJoinError) Error() string {
	return fmt.Sprintf("unmet join: %s never became ready", strings.Join(e.Nodes, ", "))
}

// RunAbortedError is returned when a run stops before reaching a terminal
// state. The run's partial state is discarded. Err is the cause: a
// *NodeExecutionError, *RoutingError, *UnmetJoinError, a context error, or
// ErrMaxStepsExceeded.
type RunAbortedError struct {
	RunID string
	Graph string
	Step  int
	Trace [][]string
	Err   error
}

func (e *RunAbortedError) Error() string {
	return fmt.Sprintf("run %s of %s aborted at step %d: %v", e.RunID, e.Graph, e.Step, e.Err)
}

func (e *RunAbortedError) Unwrap() error {
	return e.Err
}
