package workflows

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// TaskError is one failed item. Index is the item's position in the slice
// passed to ProcessParallel; the graph executor uses it to name the node
// that failed.
type TaskError[TItem any] struct {
	Index int
	Item  TItem
	Err   error
}

// ParallelResult holds the successes and failures of one ProcessParallel
// call. Results is dense and in input order; it still holds the completed
// items when an error is returned.
type ParallelResult[TItem, TResult any] struct {
	Results []TResult
	Errors  []TaskError[TItem]
}

// ParallelError is returned when failures meet the FailFast criteria. It
// unwraps to every task's error.
//
//	var pErr *workflows.ParallelError[string]
//	if errors.As(err, &pErr) {
//	    for _, f := range pErr.Errors {
//	        log.Printf("item %d: %v", f.Index, f.Err)
//	    }
//	}
type ParallelError[TItem any] struct {
	Errors []TaskError[TItem]
}

// Error reports a single failure in full and groups several by message,
// most frequent first:
//
//	parallel execution failed: 3 items failed with 2 error types: 'refused' (2 items), 'timeout' (1 item)
func (e *ParallelError[TItem]) Error() string {
	switch len(e.Errors) {
	case 0:
		return "parallel execution failed"
	case 1:
		return fmt.Sprintf("parallel execution failed: item %d: %v", e.Errors[0].Index, e.Errors[0].Err)
	}

	counts := make(map[string]int)
	for _, f := range e.Errors {
		counts[f.Err.Error()]++
	}
	messages := slices.SortedFunc(maps.Keys(counts), func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	parts := make([]string, len(messages))
	for i, msg := range messages {
		unit := "items"
		if counts[msg] == 1 {
			unit = "item"
		}
		parts[i] = fmt.Sprintf("'%s' (%d %s)", msg, counts[msg], unit)
	}

	return fmt.Sprintf("parallel execution failed: %d items failed with %d error types: %s",
		len(e.Errors), len(counts), strings.Join(parts, ", "))
}

func (e *ParallelError[TItem]) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, f := range e.Errors {
		errs[i] = f.Err
	}
	return errs
}
