package swarm

import (
	"time"

	"github.com/trellison/waggle/pkg/models"
)

// EventType represents the type of swarm event.
type EventType string

const (
	// EventDecomposed indicates the initial plan has been produced.
	EventDecomposed EventType = "decomposed"
	// EventTaskQueued indicates a task is ready and waiting for a slot.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates a task body began executing.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task finished successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventPivotStarted indicates re-planning has begun after a failure.
	EventPivotStarted EventType = "pivot_started"
	// EventPivotMerged indicates new tasks from a pivot joined the plan.
	EventPivotMerged EventType = "pivot_merged"
	// EventPivotEmpty indicates a pivot produced nothing usable.
	EventPivotEmpty EventType = "pivot_empty"
	// EventUnresolvable indicates the plan contains a cycle or a dangling
	// dependency and degraded to a forced final batch.
	EventUnresolvable EventType = "unresolvable_dependency"
	// EventTaskInjected indicates tasks were injected from outside the
	// planner loop.
	EventTaskInjected EventType = "task_injected"
	// EventDeadlock indicates the run terminated with unmet tasks.
	EventDeadlock EventType = "deadlock"
	// EventSwarmDone indicates the coordinator loop has finished.
	EventSwarmDone EventType = "swarm_done"
)

// Event is emitted by the coordinator as the run progresses. Events feed
// the watch TUI and the debug log; they carry no scheduling authority.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the related task, if applicable.
	TaskID string
	// Description is the related task's description, if applicable.
	Description string
	// Message provides additional context.
	Message string
	// Error carries failure details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Usage is the cumulative resource usage at emission time.
	Usage models.Usage
}
