package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/stategraph/agents"
	"github.com/tailored-agentic-units/stategraph/manifest"
	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
	"github.com/tailored-agentic-units/stategraph/runstore"
)

var (
	ErrMissingGraph = errors.New("request is missing \"graph\"")
	ErrMissingRunID = errors.New("request is missing \"run_id\"")
	ErrInvalidInput = errors.New("\"input\" must be a string or an object")
)

// connectError maps service errors onto Connect status codes.
func connectError(err error) *connect.Error {
	var (
		aborted  *graph.RunAbortedError
		nodeErr  *graph.NodeExecutionError
		inputErr *state.UpdateError
	)
	switch {
	case errors.Is(err, ErrMissingGraph),
		errors.Is(err, ErrMissingRunID),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, runstore.ErrEmptyID),
		errors.Is(err, runstore.ErrInvalidID):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, manifest.ErrUnknownGraph),
		errors.Is(err, agents.ErrGraphNotFound),
		errors.Is(err, runstore.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &inputErr) && !errors.As(err, &nodeErr):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.As(err, &aborted):
		return connect.NewError(connect.CodeAborted, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
