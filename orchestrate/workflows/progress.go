package workflows

// ProgressFunc is called after each successful task with the number of
// tasks completed so far, the total task count and the task's result. It is
// not called for failed tasks and may be called from several goroutines.
type ProgressFunc[TResult any] func(
	completed int,
	total int,
	result TResult,
)
