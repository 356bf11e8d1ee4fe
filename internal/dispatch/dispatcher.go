// Package dispatch executes individual tasks under a global admission limit.
// It is the only place in the system where concurrency limiting happens, and
// the boundary past which task-body failures never escape as errors: every
// outcome (success, error, panic, timeout, budget refusal) is converted into
// a uniform TaskResult.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/trellison/waggle/internal/budget"
	"github.com/trellison/waggle/pkg/models"
)

// Output is the value an executor returns on success, together with any
// resource usage the attempt consumed.
type Output struct {
	// Value is the executor's arbitrary output.
	Value any
	// Usage holds resource counters reported by the executor.
	Usage models.Usage
}

// Executor is an asynchronous task body. It receives the task's named
// arguments, including injected dependency outputs, and either returns an
// output or an error. Executors must honor ctx cancellation.
type Executor func(ctx context.Context, args map[string]any) (*Output, error)

// Dispatcher bounds how many task bodies run simultaneously and enforces
// per-task timeouts. It consults an optional budget gate before admission.
type Dispatcher struct {
	sem   *semaphore.Weighted
	limit int
	gate  budget.Gate
	logf  func(format string, args ...interface{})
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithGate sets the budget gate consulted before each dispatch.
func WithGate(gate budget.Gate) Option {
	return func(d *Dispatcher) { d.gate = gate }
}

// WithLogFunc sets the debug logging function.
func WithLogFunc(logf func(format string, args ...interface{})) Option {
	return func(d *Dispatcher) {
		if logf != nil {
			d.logf = logf
		}
	}
}

// New creates a Dispatcher admitting at most limit concurrent task bodies.
// A limit below one is treated as one.
func New(limit int, opts ...Option) *Dispatcher {
	if limit < 1 {
		limit = 1
	}
	d := &Dispatcher{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
		logf:  func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Limit returns the configured admission limit.
func (d *Dispatcher) Limit() int {
	return d.limit
}

// Execute runs a single task body and returns its result. It never returns
// an error: timeouts, panics, budget refusals, and executor errors all
// become Failed results.
//
// onStart, if non-nil, is invoked after the task has passed the budget gate
// and acquired an admission slot, immediately before the body runs. onFinish,
// if non-nil, receives the populated result before the slot is released.
// Together they let callers keep a task's visible Running window inside its
// slot ownership, so an observer never counts more Running tasks than the
// admission limit.
func (d *Dispatcher) Execute(ctx context.Context, task *models.Task, exec Executor, args map[string]any, onStart func(), onFinish func(*models.TaskResult)) *models.TaskResult {
	res := &models.TaskResult{
		TaskID: task.ID,
		Name:   task.Name,
	}
	finish := func() {
		if onFinish != nil {
			onFinish(res)
		}
	}

	if d.gate != nil && !d.gate.CanProceed() {
		d.logf("[dispatch] task %s refused: budget exceeded (cost so far $%.4f)", task.ID, d.gate.CumulativeCost())
		res.Status = models.TaskStatusFailed
		res.Error = "budget exceeded"
		res.EndedAt = time.Now()
		finish()
		return res
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		res.Status = models.TaskStatusFailed
		res.Error = fmt.Sprintf("cancelled while waiting for slot: %v", err)
		res.EndedAt = time.Now()
		finish()
		return res
	}
	defer d.sem.Release(1)
	// Deferred after Release so it runs first: the result is observable
	// before the slot frees up for the next task.
	defer finish()

	if onStart != nil {
		onStart()
	}

	taskCtx := ctx
	cancel := context.CancelFunc(func() {})
	if task.Timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, task.Timeout)
	}
	defer cancel()

	res.StartedAt = time.Now()
	d.logf("[dispatch] task %s started (timeout=%s)", task.ID, task.Timeout)

	outCh := make(chan *Output, 1)
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("panic: %v", r)
			}
		}()
		out, err := exec(taskCtx, args)
		if err != nil {
			errCh <- err
			return
		}
		outCh <- out
	}()

	select {
	case out := <-outCh:
		res.Status = models.TaskStatusCompleted
		if out != nil {
			res.Output = out.Value
			res.Usage = out.Usage
		}
	case err := <-errCh:
		res.Status = models.TaskStatusFailed
		res.Error = err.Error()
	case <-taskCtx.Done():
		// Cancel the in-flight attempt; it must not delay siblings.
		cancel()
		res.Status = models.TaskStatusFailed
		if task.Timeout > 0 && ctx.Err() == nil {
			res.Error = fmt.Sprintf("timeout after %gs", task.Timeout.Seconds())
		} else {
			res.Error = fmt.Sprintf("cancelled: %v", taskCtx.Err())
		}
	}

	res.EndedAt = time.Now()
	res.Duration = res.EndedAt.Sub(res.StartedAt)
	d.logf("[dispatch] task %s finished: status=%s error=%q duration=%s", task.ID, res.Status, res.Error, res.Duration)
	return res
}
