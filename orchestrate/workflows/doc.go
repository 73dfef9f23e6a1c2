// Package workflows provides the generic worker pool used to run independent
// tasks concurrently while keeping results in input order.
//
// # Parallel Execution Pattern
//
// ProcessParallel fans items out to a bounded pool of goroutines and returns
// dense, index-ordered result and error slices:
//
//	processor := func(ctx context.Context, subtask string) (string, error) {
//	    return model.Generate(ctx, "Do this subtask succinctly: "+subtask)
//	}
//
//	result, err := workflows.ProcessParallel(ctx, config.DefaultParallelConfig(), subtasks, processor, nil)
//
// The graph executor dispatches each step's ready set through
// ProcessParallelWith with one worker per ready node, and folds the
// index-ordered updates in node declaration order.
//
// # Error Handling
//
// In fail-fast mode (the default) the first failure cancels the remaining
// workers and a *ParallelError is returned. ParallelError unwraps to every
// task error, so errors.Is and errors.As search across all failures.
package workflows
