package graph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
	"github.com/tailored-agentic-units/stategraph/orchestrate/state"
	"github.com/tailored-agentic-units/stategraph/orchestrate/workflows"
)

// Conflict records a step in which more than one node wrote the same
// Replace field. The last writer in declaration order wins.
type Conflict struct {
	Step  int      `json:"step"`
	Field string   `json:"field"`
	Nodes []string `json:"nodes"`
}

// Result is the outcome of a completed run.
type Result struct {
	RunID     string        `json:"run_id"`
	Graph     string        `json:"graph"`
	State     state.State   `json:"state"`
	Steps     int           `json:"steps"`
	Trace     [][]string    `json:"trace"`
	Unreached []Unreached   `json:"unreached,omitempty"`
	Conflicts []Conflict    `json:"conflicts,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Run executes the graph from START until no node is ready. Nodes that are
// ready together form one step: they run concurrently against the same
// snapshot, and their updates are applied in declaration order once all of
// them return. Routers run after the step's updates are applied.
//
// A failed run returns a *RunAbortedError and no state.
func (g *Graph) Run(ctx context.Context, initial map[string]any) (*Result, error) {
	runID := uuid.NewString()
	start := time.Now()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	r := &execution{g: g, runID: runID, tracker: newTracker(g)}

	store, err := state.NewStore(g.schema, initial)
	if err != nil {
		return nil, r.abort(ctx, fmt.Errorf("initial state: %w", err))
	}

	r.emit(ctx, EventGraphStart, observability.LevelInfo, map[string]any{
		"nodes":          len(g.order),
		"initial_fields": len(initial),
	})

	r.tracker.complete(START, "")

	for ready := r.tracker.next(); len(ready) > 0; ready = r.tracker.next() {
		if r.step >= g.maxSteps {
			return nil, r.abort(ctx, fmt.Errorf("%w: %d", ErrMaxStepsExceeded, g.maxSteps))
		}
		if err := ctx.Err(); err != nil {
			return nil, r.abort(ctx, err)
		}

		r.emit(ctx, EventStepStart, observability.LevelVerbose, map[string]any{
			"step":  r.step,
			"nodes": ready,
		})

		updates, err := r.dispatch(ctx, ready, store.Snapshot())
		if err != nil {
			return nil, r.abort(ctx, err)
		}
		r.trace = append(r.trace, ready)
		if err := ctx.Err(); err != nil {
			return nil, r.abort(ctx, err)
		}

		r.detectConflicts(ctx, ready, updates)
		for i, id := range ready {
			if err := store.Apply(updates[i]); err != nil {
				return nil, r.abort(ctx, &NodeExecutionError{Node: id, Step: r.step, Err: err})
			}
		}

		post := store.Snapshot()
		for _, id := range ready {
			target := ""
			if c, ok := g.conditionals[id]; ok {
				target, err = r.route(ctx, c, post)
				if err != nil {
					return nil, r.abort(ctx, err)
				}
			}
			r.tracker.complete(id, target)
		}

		r.emit(ctx, EventStepComplete, observability.LevelVerbose, map[string]any{
			"step":  r.step,
			"nodes": ready,
		})
		r.step++
	}

	unreached := r.tracker.unreached()
	var unmet []string
	for _, u := range unreached {
		level := observability.LevelVerbose
		if u.Reason == ReasonUnmetJoin {
			level = observability.LevelWarning
			unmet = append(unmet, u.Node)
		}
		r.emit(ctx, EventNodeUnreached, level, map[string]any{
			"node":   u.Node,
			"reason": string(u.Reason),
		})
	}
	if len(unmet) > 0 && g.failOnUnmetJoin {
		return nil, r.abort(ctx, &UnmetJoinError{Nodes: unmet})
	}

	result := &Result{
		RunID:     runID,
		Graph:     g.name,
		State:     store.Snapshot(),
		Steps:     r.step,
		Trace:     r.trace,
		Unreached: unreached,
		Conflicts: r.conflicts,
		Duration:  time.Since(start),
	}

	r.emit(ctx, EventGraphComplete, observability.LevelInfo, map[string]any{
		"steps":       result.Steps,
		"unreached":   len(unreached),
		"conflicts":   len(r.conflicts),
		"duration_ms": result.Duration.Milliseconds(),
	})

	return result, nil
}

// execution carries one run's mutable bookkeeping.
type execution struct {
	g         *Graph
	runID     string
	tracker   *tracker
	step      int
	trace     [][]string
	conflicts []Conflict
}

func (r *execution) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	data["run_id"] = r.runID
	observability.Emit(ctx, r.g.observer, typ, level, r.g.name, data)
}

func (r *execution) abort(ctx context.Context, cause error) error {
	err := &RunAbortedError{
		RunID: r.runID,
		Graph: r.g.name,
		Step:  r.step,
		Trace: r.trace,
		Err:   cause,
	}
	r.emit(context.WithoutCancel(ctx), EventGraphAborted, observability.LevelError, map[string]any{
		"step":  r.step,
		"error": cause.Error(),
	})
	return err
}

// dispatch runs the ready set concurrently and returns the updates aligned
// with ready. The first node failure cancels the rest of the step.
func (r *execution) dispatch(ctx context.Context, ready []string, snapshot state.State) ([]state.Update, error) {
	failFast := true
	cfg := config.ParallelConfig{
		MaxWorkers:  len(ready),
		FailFastNil: &failFast,
	}

	processor := func(ctx context.Context, id string) (state.Update, error) {
		return r.invoke(ctx, id, snapshot)
	}

	result, err := workflows.ProcessParallelWith(ctx, cfg, r.g.observer, ready, processor, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, r.firstFailure(result.Errors, err)
	}
	return result.Results, nil
}

// firstFailure picks the failure that caused a fail-fast step to stop.
// Siblings cancelled in its wake report context.Canceled and are skipped.
func (r *execution) firstFailure(failures []workflows.TaskError[string], fallback error) error {
	var cause *workflows.TaskError[string]
	for i := range failures {
		f := &failures[i]
		if errors.Is(f.Err, context.Canceled) {
			continue
		}
		if cause == nil || f.Index < cause.Index {
			cause = f
		}
	}
	if cause == nil {
		if len(failures) == 0 {
			return fallback
		}
		cause = &failures[0]
	}
	return &NodeExecutionError{Node: cause.Item, Step: r.step, Err: cause.Err}
}

func (r *execution) invoke(ctx context.Context, id string, snapshot state.State) (update state.Update, err error) {
	ctx = withRunInfo(ctx, RunInfo{RunID: r.runID, Graph: r.g.name, Step: r.step, Node: id})
	r.emit(ctx, EventNodeStart, observability.LevelVerbose, map[string]any{
		"node": id,
		"step": r.step,
	})
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			update, err = nil, fmt.Errorf("panic: %v", p)
		}

		data := map[string]any{
			"node":        id,
			"step":        r.step,
			"fields":      len(update),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		level := observability.LevelVerbose
		if err != nil {
			level = observability.LevelError
			data["error"] = err.Error()
		}
		r.emit(ctx, EventNodeComplete, level, data)
	}()

	return r.g.nodes[id].Execute(ctx, snapshot)
}

// detectConflicts reports Replace fields written by more than one node in
// the same step.
func (r *execution) detectConflicts(ctx context.Context, ready []string, updates []state.Update) {
	writers := make(map[string][]string)
	for i, id := range ready {
		for field := range updates[i] {
			if r.g.schema.Policy(field) == state.Replace {
				writers[field] = append(writers[field], id)
			}
		}
	}

	for _, field := range slices.Sorted(maps.Keys(writers)) {
		nodes := writers[field]
		if len(nodes) < 2 {
			continue
		}
		r.conflicts = append(r.conflicts, Conflict{Step: r.step, Field: field, Nodes: nodes})
		r.emit(ctx, EventStateConflict, observability.LevelWarning, map[string]any{
			"step":   r.step,
			"field":  field,
			"nodes":  nodes,
			"winner": nodes[len(nodes)-1],
		})
	}
}

// route evaluates a conditional edge against the post-step state.
func (r *execution) route(ctx context.Context, c *conditional, s state.State) (target string, err error) {
	defer func() {
		if p := recover(); p != nil {
			target, err = "", &RoutingError{Node: c.source, Labels: c.labelNames(), Err: fmt.Errorf("router panic: %v", p)}
		}
	}()

	label := c.router(s)
	target, usedDefault, ok := c.resolve(label)
	if !ok {
		return "", &RoutingError{Node: c.source, Label: label, Labels: c.labelNames()}
	}

	r.emit(ctx, EventRouteSelect, observability.LevelInfo, map[string]any{
		"node":    c.source,
		"step":    r.step,
		"label":   label,
		"target":  target,
		"default": usedDefault,
	})
	return target, nil
}
