// Package board provides the coordination blackboard: a lock-serialized
// registry of task records and free-form observations shared between the
// swarm coordinator and its observers. It is the only mutable shared state
// in the system; every operation, read or write, holds one exclusive lock
// for its entire duration so callers never observe a half-updated record.
package board

import (
	"sync"
	"time"

	"github.com/trellison/waggle/pkg/models"
)

// Record is a task's entry on the blackboard. Records are never deleted;
// they are only appended or updated by ID. The status chain is
// pending -> running -> {completed, failed, skipped}; a terminal status
// never reverts.
type Record struct {
	// ID is the task identifier.
	ID string `json:"id"`
	// Description is the task description.
	Description string `json:"description"`
	// Agent is the executor/agent label assigned to the task.
	Agent string `json:"agent"`
	// Status is the current lifecycle state.
	Status models.TaskStatus `json:"status"`
	// DependsOn lists the task IDs this record depends on.
	DependsOn []string `json:"depends_on,omitempty"`
	// Result is the task's output payload once available.
	Result any `json:"result,omitempty"`
	// Error describes the failure, if any.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the record was registered.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Observation is a free-text note tagged with its originating agent.
// The observation log is append-only and never mutated.
type Observation struct {
	// Agent names the originator.
	Agent string `json:"agent"`
	// Note is the free-form text.
	Note string `json:"note"`
	// At is when the observation was recorded.
	At time.Time `json:"at"`
}

// Board is the concurrency-safe task registry.
type Board struct {
	mu           sync.Mutex
	records      map[string]*Record
	order        []string // registration order, for deterministic snapshots
	observations []Observation
	notify       chan struct{}
	logf         func(format string, args ...interface{})
}

// New creates an empty Board.
func New() *Board {
	return &Board{
		records: make(map[string]*Record),
		notify:  make(chan struct{}, 1),
		logf:    func(format string, args ...interface{}) {},
	}
}

// SetLogFunc sets the debug logging function used for no-op reports.
func (b *Board) SetLogFunc(logf func(format string, args ...interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if logf != nil {
		b.logf = logf
	}
}

// Notify returns a channel that receives a signal whenever the board
// mutates. The channel has a one-element buffer; coalesced signals are fine
// because waiters re-read the full state on wakeup.
func (b *Board) Notify() <-chan struct{} {
	return b.notify
}

// signalLocked nudges any waiter. Caller must hold b.mu.
func (b *Board) signalLocked() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Register adds a new task record in status pending. Registering an ID that
// already exists is a logged no-op: records are append-only and a pivot must
// not clobber prior attempts.
func (b *Board) Register(task *models.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.records[task.ID]; exists {
		b.logf("[board] register ignored: task %s already registered", task.ID)
		return
	}

	now := time.Now()
	deps := make([]string, len(task.DependsOn))
	copy(deps, task.DependsOn)

	b.records[task.ID] = &Record{
		ID:          task.ID,
		Description: task.Name,
		Agent:       task.Capability,
		Status:      models.TaskStatusPending,
		DependsOn:   deps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.order = append(b.order, task.ID)
	b.signalLocked()
}

// UpdateStatus transitions a record to the given status, optionally
// attaching a result payload and error text. Updating an unknown ID or
// attempting to leave a terminal status is a logged no-op, never a crash.
func (b *Board) UpdateStatus(id string, status models.TaskStatus, result any, errText string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[id]
	if !ok {
		b.logf("[board] update ignored: unknown task %s (status=%s)", id, status)
		return
	}
	if rec.Status.Terminal() {
		b.logf("[board] update ignored: task %s already terminal (%s -> %s)", id, rec.Status, status)
		return
	}

	rec.Status = status
	if result != nil {
		rec.Result = result
	}
	if errText != "" {
		rec.Error = errText
	}
	rec.UpdatedAt = time.Now()
	b.signalLocked()
}

// AddObservation appends a note to the observation log.
func (b *Board) AddObservation(agent, note string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.observations = append(b.observations, Observation{
		Agent: agent,
		Note:  note,
		At:    time.Now(),
	})
	b.signalLocked()
}

// Get returns a copy of the record for the given ID.
func (b *Board) Get(id string) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Snapshot returns copies of all records in registration order.
func (b *Board) Snapshot() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Record, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.records[id])
	}
	return out
}

// Observations returns a copy of the observation log.
func (b *Board) Observations() []Observation {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Observation, len(b.observations))
	copy(out, b.observations)
	return out
}

// Summary returns the number of records in each status.
func (b *Board) Summary() map[models.TaskStatus]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[models.TaskStatus]int)
	for _, rec := range b.records {
		counts[rec.Status]++
	}
	return counts
}

// RunningCount returns the number of records currently in status running.
func (b *Board) RunningCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, rec := range b.records {
		if rec.Status == models.TaskStatusRunning {
			n++
		}
	}
	return n
}

// StatusSets partitions record IDs by lifecycle stage: pending, running,
// completed, and failed. Skipped records are counted as failed for
// progress-tracking purposes since their work never happened.
func (b *Board) StatusSets() (pending, running, completed, failed map[string]bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending = make(map[string]bool)
	running = make(map[string]bool)
	completed = make(map[string]bool)
	failed = make(map[string]bool)

	for id, rec := range b.records {
		switch rec.Status {
		case models.TaskStatusPending:
			pending[id] = true
		case models.TaskStatusRunning:
			running[id] = true
		case models.TaskStatusCompleted:
			completed[id] = true
		case models.TaskStatusFailed, models.TaskStatusSkipped:
			failed[id] = true
		}
	}
	return pending, running, completed, failed
}

// Size returns the number of registered records.
func (b *Board) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
