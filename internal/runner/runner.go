// Package runner drives an execution plan batch-by-batch. Each batch has
// join-all semantics: every task in it launches concurrently (bounded by the
// dispatcher) and the runner only advances once all of them hold a terminal
// result. Task failures are data, never control flow; the only way a run
// stops early is the fail-fast short-circuit, which records later tasks as
// skipped rather than abandoning them silently.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trellison/waggle/internal/dispatch"
	"github.com/trellison/waggle/internal/plan"
	"github.com/trellison/waggle/pkg/models"
)

// DepKeyPrefix is the convention prefix under which a completed dependency's
// output appears in a dependent task's argument map.
const DepKeyPrefix = "dep:"

// TaskKey is the argument key carrying the task's description to its
// executor, unless the task's own arguments already set it.
const TaskKey = "task"

// Lookup resolves a capability name to its executor.
type Lookup func(capability string) (dispatch.Executor, bool)

// Tracker observes task lifecycle transitions during a run. The blackboard
// satisfies this interface; a nil tracker disables tracking.
type Tracker interface {
	// TaskStarted is called once the task has been admitted and its body
	// is about to run.
	TaskStarted(taskID string)
	// TaskFinished is called with the task's terminal result, including
	// skipped tasks that never ran.
	TaskFinished(res *models.TaskResult)
}

// RunResult aggregates the outcome of driving a full plan.
type RunResult struct {
	// Results maps task ID to its terminal result.
	Results map[string]*models.TaskResult
	// Completed, Failed, and Skipped count terminal outcomes.
	Completed int
	Failed    int
	Skipped   int
	// Usage accumulates resource counters across all attempts.
	Usage models.Usage
	// WallClock is the total elapsed time of the run.
	WallClock time.Duration
	// Speedup is the sum of per-task durations divided by wall-clock
	// time. A diagnostic parallelism metric, not a correctness signal.
	Speedup float64
	// Unresolved carries the plan's unresolvable-dependency diagnostics.
	Unresolved []string
	// ShortCircuited is true when fail-fast stopped the run early.
	ShortCircuited bool
}

// Succeeded returns true if every task completed.
func (r *RunResult) Succeeded() bool {
	return r.Failed == 0 && r.Skipped == 0
}

// Runner executes plans through a dispatcher.
type Runner struct {
	dispatcher *dispatch.Dispatcher
	lookup     Lookup
	failFast   bool
	tracker    Tracker
	logf       func(format string, args ...interface{})
}

// Option configures a Runner.
type Option func(*Runner)

// WithFailFast stops the run at the first batch containing a failure,
// marking all tasks in later batches as skipped.
func WithFailFast(on bool) Option {
	return func(r *Runner) { r.failFast = on }
}

// WithTracker sets the lifecycle tracker.
func WithTracker(t Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithLogFunc sets the debug logging function.
func WithLogFunc(logf func(format string, args ...interface{})) Option {
	return func(r *Runner) {
		if logf != nil {
			r.logf = logf
		}
	}
}

// New creates a Runner that resolves capabilities through lookup and
// executes bodies through d.
func New(d *dispatch.Dispatcher, lookup Lookup, opts ...Option) *Runner {
	r := &Runner{
		dispatcher: d,
		lookup:     lookup,
		logf:       func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the plan to completion and returns the aggregate result.
// The returned result is owned by the caller; no state is shared across
// concurrent Run invocations.
func (r *Runner) Run(ctx context.Context, p *plan.ExecutionPlan) *RunResult {
	started := time.Now()
	out := &RunResult{
		Results:    make(map[string]*models.TaskResult, p.TaskCount()),
		Unresolved: append([]string(nil), p.Unresolved...),
	}

	for bi, batch := range p.Batches {
		r.logf("[runner] batch %d/%d: %d tasks", bi+1, len(p.Batches), len(batch))
		r.runBatch(ctx, batch, out)

		if r.failFast && r.batchHasHardFailure(batch, out) {
			r.logf("[runner] fail-fast: batch %d had a failure, skipping %d remaining batches", bi+1, len(p.Batches)-bi-1)
			r.skipRemaining(p.Batches[bi+1:], out)
			out.ShortCircuited = true
			break
		}
	}

	out.WallClock = time.Since(started)
	var summed time.Duration
	for _, res := range out.Results {
		summed += res.Duration
		out.Usage.Add(res.Usage)
	}
	if out.WallClock > 0 {
		out.Speedup = float64(summed) / float64(out.WallClock)
	}
	return out
}

// runBatch launches every task in the batch concurrently and joins all of
// them before returning.
func (r *Runner) runBatch(ctx context.Context, batch plan.Batch, out *RunResult) {
	// Argument maps are built up front. Dependency outputs all come from
	// earlier, already-joined batches, and a fast-finishing sibling writes
	// Results while this loop would still be reading it.
	argsFor := make([]map[string]any, len(batch))
	for i, task := range batch {
		argsFor[i] = r.injectDeps(task, out)
	}

	var mu sync.Mutex
	var g errgroup.Group

	for i, task := range batch {
		task := task
		args := argsFor[i]
		g.Go(func() error {
			res := r.execute(ctx, task, args)
			mu.Lock()
			r.record(res, out)
			mu.Unlock()
			return nil
		})
	}
	// Join-all: errors never surface here, every outcome is a result.
	_ = g.Wait()
}

// execute runs a single task, resolving its capability first.
func (r *Runner) execute(ctx context.Context, task *models.Task, args map[string]any) *models.TaskResult {
	exec, ok := r.lookup(task.Capability)
	if !ok {
		now := time.Now()
		res := &models.TaskResult{
			TaskID:  task.ID,
			Name:    task.Name,
			Status:  models.TaskStatusFailed,
			Error:   fmt.Sprintf("no executor registered for capability %q", task.Capability),
			EndedAt: now,
		}
		if r.tracker != nil {
			r.tracker.TaskFinished(res)
		}
		return res
	}

	var onStart func()
	var onFinish func(*models.TaskResult)
	if r.tracker != nil {
		onStart = func() { r.tracker.TaskStarted(task.ID) }
		onFinish = func(res *models.TaskResult) { r.tracker.TaskFinished(res) }
	}
	return r.dispatcher.Execute(ctx, task, exec, args, onStart, onFinish)
}

// injectDeps copies the task's argument map and adds each completed
// dependency's output under the "dep:<id>" convention key.
func (r *Runner) injectDeps(task *models.Task, out *RunResult) map[string]any {
	args := task.CloneArgs()
	if _, ok := args[TaskKey]; !ok && task.Name != "" {
		args[TaskKey] = task.Name
	}
	for _, depID := range task.DependsOn {
		if depRes, ok := out.Results[depID]; ok && depRes.Succeeded() {
			args[DepKeyPrefix+depID] = depRes.Output
		}
	}
	return args
}

// record merges a terminal result into the aggregate.
func (r *Runner) record(res *models.TaskResult, out *RunResult) {
	out.Results[res.TaskID] = res
	switch res.Status {
	case models.TaskStatusCompleted:
		out.Completed++
	case models.TaskStatusSkipped:
		out.Skipped++
	default:
		out.Failed++
	}
}

// batchHasHardFailure reports whether any task in the batch failed without
// opting out of fail-fast via ContinueOnError.
func (r *Runner) batchHasHardFailure(batch plan.Batch, out *RunResult) bool {
	for _, task := range batch {
		res, ok := out.Results[task.ID]
		if !ok {
			continue
		}
		if res.Status == models.TaskStatusFailed && !task.ContinueOnError {
			return true
		}
	}
	return false
}

// skipRemaining records a skipped result for every task in the given
// batches without executing them.
func (r *Runner) skipRemaining(batches []plan.Batch, out *RunResult) {
	now := time.Now()
	for _, batch := range batches {
		for _, task := range batch {
			res := &models.TaskResult{
				TaskID:  task.ID,
				Name:    task.Name,
				Status:  models.TaskStatusSkipped,
				Error:   "skipped: earlier batch failed",
				EndedAt: now,
			}
			r.record(res, out)
			if r.tracker != nil {
				r.tracker.TaskFinished(res)
			}
		}
	}
}
