package workflows

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tailored-agentic-units/stategraph/observability"
	"github.com/tailored-agentic-units/stategraph/orchestrate/config"
)

// TaskProcessor processes a single item and returns a result. Tasks run
// independently; a processor never sees another task's result.
//
// The graph executor uses a processor that invokes one node against the
// step's shared snapshot and returns that node's partial update.
type TaskProcessor[TItem, TResult any] func(
	ctx context.Context,
	item TItem,
) (TResult, error)

type indexedItem[TItem any] struct {
	index int
	item  TItem
}

type indexedResult[TResult any] struct {
	index  int
	result TResult
	err    error
}

// ProcessParallel executes concurrent processing with result aggregation.
//
// Items are distributed to a worker pool and processed concurrently. Results
// are returned in original item order regardless of completion order, which
// is what lets callers fold results deterministically.
//
// Worker count:
//   - MaxWorkers > 0: Use exact count
//   - MaxWorkers = 0: Auto-detect min(NumCPU*2, WorkerCap, len(items))
//
// Error handling:
//   - FailFast=true (default): the first error cancels the remaining workers
//     and a ParallelError is returned with partial results
//   - FailFast=false: every item is processed and an error is returned only
//     if all items failed; check result.Errors otherwise
//
// The observer is resolved by name from cfg.Observer. Use
// ProcessParallelWith to supply an observer instance directly.
//
// Example:
//
//	cfg := config.DefaultParallelConfig()
//	result, err := workflows.ProcessParallel(ctx, cfg, subtasks, processor, nil)
//	if err != nil {
//	    return err
//	}
func ProcessParallel[TItem, TResult any](
	ctx context.Context,
	cfg config.ParallelConfig,
	items []TItem,
	processor TaskProcessor[TItem, TResult],
	progress ProgressFunc[TResult],
) (ParallelResult[TItem, TResult], error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return ParallelResult[TItem, TResult]{}, fmt.Errorf("failed to resolve observer: %w", err)
	}

	return ProcessParallelWith(ctx, cfg, observer, items, processor, progress)
}

// ProcessParallelWith is ProcessParallel with an explicit observer; cfg.Observer
// is ignored. A nil observer discards events.
func ProcessParallelWith[TItem, TResult any](
	ctx context.Context,
	cfg config.ParallelConfig,
	observer observability.Observer,
	items []TItem,
	processor TaskProcessor[TItem, TResult],
	progress ProgressFunc[TResult],
) (ParallelResult[TItem, TResult], error) {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	workerCount := 0
	if len(items) > 0 {
		workerCount = calculateWorkerCount(cfg.MaxWorkers, cfg.WorkerCap, len(items))
	}

	observability.Emit(ctx, observer, EventParallelStart, observability.LevelVerbose, parallelSource, map[string]any{
		"item_count":            len(items),
		"worker_count":          workerCount,
		"fail_fast":             cfg.FailFast(),
		"has_progress_callback": progress != nil,
	})

	if len(items) == 0 {
		emitParallelComplete(ctx, observer, 0, 0, false)
		return ParallelResult[TItem, TResult]{
			Results: []TResult{},
			Errors:  []TaskError[TItem]{},
		}, nil
	}

	workQueue := make(chan indexedItem[TItem], len(items))
	resultChannel := make(chan indexedResult[TResult], len(items))
	done := make(chan struct{})

	var results []TResult
	var taskErrors []TaskError[TItem]

	go func() {
		results, taskErrors = collectResults(resultChannel, items)
		close(done)
	}()

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := func() {}
	if cfg.FailFast() {
		stop = cancel
	}

	var wg sync.WaitGroup
	var completed atomic.Int32

	for i := range workerCount {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processWorker(workerCtx, workerID, workQueue, resultChannel, processor, progress, &completed, len(items), observer, stop)
		}(i)
	}

	for i, item := range items {
		workQueue <- indexedItem[TItem]{index: i, item: item}
	}
	close(workQueue)

	wg.Wait()
	close(resultChannel)
	<-done

	result := ParallelResult[TItem, TResult]{Results: results, Errors: taskErrors}

	if err := ctx.Err(); err != nil {
		emitParallelComplete(ctx, observer, len(results), len(taskErrors), true)
		return result, fmt.Errorf("parallel execution cancelled: %w", err)
	}

	if len(taskErrors) > 0 && (cfg.FailFast() || len(results) == 0) {
		emitParallelComplete(ctx, observer, len(results), len(taskErrors), true)
		return result, &ParallelError[TItem]{Errors: taskErrors}
	}

	emitParallelComplete(ctx, observer, len(results), len(taskErrors), false)
	return result, nil
}

const parallelSource = "workflows.ProcessParallel"

func emitParallelComplete(ctx context.Context, observer observability.Observer, processed, failed int, isErr bool) {
	observability.Emit(ctx, observer, EventParallelComplete, observability.LevelVerbose, parallelSource, map[string]any{
		"items_processed": processed,
		"items_failed":    failed,
		"error":           isErr,
	})
}

// calculateWorkerCount returns MaxWorkers when set, otherwise
// min(NumCPU*2, workerCap, itemCount) with a floor of one.
func calculateWorkerCount(maxWorkers, workerCap, itemCount int) int {
	if maxWorkers > 0 {
		return maxWorkers
	}

	workers := min(runtime.NumCPU()*2, workerCap, itemCount)
	if workers <= 0 {
		workers = 1
	}
	return workers
}

// processWorker pulls items until the queue closes or the context is
// cancelled. On error it calls stop, which cancels the pool in fail-fast
// mode and does nothing otherwise.
func processWorker[TItem, TResult any](
	ctx context.Context,
	workerID int,
	workQueue <-chan indexedItem[TItem],
	resultChannel chan<- indexedResult[TResult],
	processor TaskProcessor[TItem, TResult],
	progress ProgressFunc[TResult],
	completed *atomic.Int32,
	total int,
	observer observability.Observer,
	stop context.CancelFunc,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-workQueue:
			if !ok {
				return
			}

			observability.Emit(ctx, observer, EventWorkerStart, observability.LevelVerbose, parallelSource, map[string]any{
				"worker_id":   workerID,
				"item_index":  work.index,
				"total_items": total,
			})

			result, err := processor(ctx, work.item)

			observability.Emit(ctx, observer, EventWorkerComplete, observability.LevelVerbose, parallelSource, map[string]any{
				"worker_id":   workerID,
				"item_index":  work.index,
				"total_items": total,
				"error":       err != nil,
			})

			if err != nil {
				resultChannel <- indexedResult[TResult]{index: work.index, err: err}
				stop()
				if ctx.Err() != nil {
					return
				}
				continue
			}

			resultChannel <- indexedResult[TResult]{index: work.index, result: result}
			if progress != nil {
				progress(int(completed.Add(1)), total, result)
			}
		}
	}
}

// collectResults drains the result channel and rebuilds dense, index-ordered
// success and failure slices. It runs in its own goroutine so workers never
// block on a full result buffer.
func collectResults[TItem, TResult any](
	resultChannel <-chan indexedResult[TResult],
	items []TItem,
) ([]TResult, []TaskError[TItem]) {
	resultMap := make(map[int]TResult)
	errorMap := make(map[int]error)

	for result := range resultChannel {
		if result.err != nil {
			errorMap[result.index] = result.err
		} else {
			resultMap[result.index] = result.result
		}
	}

	results := make([]TResult, 0, len(resultMap))
	taskErrors := make([]TaskError[TItem], 0, len(errorMap))

	for i := range items {
		if result, ok := resultMap[i]; ok {
			results = append(results, result)
		}
		if err, ok := errorMap[i]; ok {
			taskErrors = append(taskErrors, TaskError[TItem]{Index: i, Item: items[i], Err: err})
		}
	}

	return results, taskErrors
}
