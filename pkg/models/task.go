package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was never executed because an
	// earlier failure short-circuited the run.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state. A record in a
// terminal status never transitions again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Task is a single unit of work produced by decomposition or by a pivot.
// Tasks are immutable once created: a pivot creates new Task records rather
// than mutating existing ones.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Name is the short human-readable name of the task.
	Name string `json:"name"`
	// Capability names the executor capability that runs this task.
	Capability string `json:"capability"`
	// Args is the named argument map passed to the executor. Dependency
	// outputs are injected here under "dep:<id>" keys before dispatch.
	Args map[string]any `json:"args,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Priority orders tasks within a batch; higher runs earlier.
	Priority int `json:"priority,omitempty"`
	// Timeout is the per-task execution timeout. Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty"`
	// ContinueOnError allows a fail-fast run to proceed even if this
	// task fails.
	ContinueOnError bool `json:"continue_on_error,omitempty"`
	// Model is the model identifier selected for this task by the
	// complexity classifier, if any.
	Model string `json:"model,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
}

// CloneArgs returns a shallow copy of the task's argument map. The copy is
// safe to extend with injected dependency outputs without mutating the task.
func (t *Task) CloneArgs() map[string]any {
	args := make(map[string]any, len(t.Args)+len(t.DependsOn))
	for k, v := range t.Args {
		args[k] = v
	}
	return args
}
