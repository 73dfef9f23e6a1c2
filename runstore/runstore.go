// Package runstore records finished graph runs so they can be fetched by id
// after the request that started them has returned. Records are results,
// not checkpoints: a run cannot be resumed from one.
package runstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/stategraph/orchestrate/graph"
)

var (
	ErrNotFound  = errors.New("run not found")
	ErrEmptyID   = errors.New("run id is empty")
	ErrInvalidID = errors.New("invalid run id")
)

// Status is the outcome of a recorded run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is a finished run.
type Record struct {
	RunID      string            `json:"run_id"`
	Graph      string            `json:"graph"`
	Status     Status            `json:"status"`
	State      map[string]any    `json:"state,omitempty"`
	Steps      int               `json:"steps"`
	Trace      [][]string        `json:"trace,omitempty"`
	Unreached  []graph.Unreached `json:"unreached,omitempty"`
	Conflicts  []graph.Conflict  `json:"conflicts,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Store persists run records. Implementations are safe for concurrent use.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, runID string) (Record, error)
	// List returns up to limit records, newest first. An empty graphName
	// matches every graph; limit <= 0 means no limit.
	List(ctx context.Context, graphName string, limit int) ([]Record, error)
	Close() error
}

// FromResult records a completed run.
func FromResult(res *graph.Result, started time.Time) Record {
	return Record{
		RunID:      res.RunID,
		Graph:      res.Graph,
		Status:     StatusCompleted,
		State:      res.State.Data(),
		Steps:      res.Steps,
		Trace:      res.Trace,
		Unreached:  res.Unreached,
		Conflicts:  res.Conflicts,
		StartedAt:  started,
		FinishedAt: started.Add(res.Duration),
	}
}

// FromError records a failed run. Runs that failed before starting get a
// fresh id.
func FromError(graphName string, err error, started time.Time) Record {
	rec := Record{
		RunID:      uuid.Must(uuid.NewV7()).String(),
		Graph:      graphName,
		Status:     StatusFailed,
		Error:      err.Error(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	var aborted *graph.RunAbortedError
	if errors.As(err, &aborted) {
		rec.RunID = aborted.RunID
		rec.Steps = aborted.Step
		rec.Trace = aborted.Trace
	}
	return rec
}

func validate(rec Record) error {
	if rec.RunID == "" {
		return ErrEmptyID
	}
	return nil
}

// newest orders records by finish time, latest first.
func newest(a, b Record) int {
	return b.FinishedAt.Compare(a.FinishedAt)
}

func filter(records []Record, graphName string, limit int) []Record {
	out := records[:0]
	for _, rec := range records {
		if graphName == "" || rec.Graph == graphName {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
