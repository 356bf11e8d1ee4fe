// Package plan turns a flat task list into an ordered sequence of
// parallel-safe batches. Resolution is a pure function with no side effects;
// the resulting ExecutionPlan is transient and recomputed whenever the task
// set changes.
package plan

import (
	"sort"

	"github.com/trellison/waggle/pkg/models"
)

// Batch is a set of tasks whose dependencies are all satisfied by earlier
// batches and which may therefore run concurrently.
type Batch []*models.Task

// ExecutionPlan is an ordered sequence of batches. A task's batch index is
// strictly greater than the batch index of every task it depends on, except
// for tasks listed in Unresolved.
type ExecutionPlan struct {
	// Batches holds the layered tasks in execution order.
	Batches []Batch
	// Unresolved lists the IDs of tasks that were forced into the final
	// batch because of a dependency cycle or a reference to an unknown
	// task. Empty for a well-formed task set.
	Unresolved []string
}

// TaskCount returns the total number of tasks across all batches.
func (p *ExecutionPlan) TaskCount() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b)
	}
	return n
}

// BatchIndex returns the index of the batch containing the given task ID,
// or -1 if the task is not in the plan.
func (p *ExecutionPlan) BatchIndex(taskID string) int {
	for i, b := range p.Batches {
		for _, t := range b {
			if t.ID == taskID {
				return i
			}
		}
	}
	return -1
}

// Resolve builds an ExecutionPlan from the given tasks using iterative
// greedy topological layering: each pass collects the not-yet-batched tasks
// whose dependencies are all already batched, and that subset becomes the
// next batch.
//
// If a pass makes no progress while tasks remain (a dependency cycle or a
// reference to an unknown task), the remaining tasks are forced into one
// final batch instead of looping forever, and their IDs are surfaced in
// Unresolved. This knowingly allows a task to run before an unmet
// dependency; callers that cannot tolerate that must check Unresolved.
//
// The completed set names task IDs whose work is already done (from a prior
// run); dependencies on them are treated as satisfied.
func Resolve(tasks []*models.Task, completed map[string]bool) *ExecutionPlan {
	p := &ExecutionPlan{}
	if len(tasks) == 0 {
		return p
	}

	batched := make(map[string]bool, len(tasks))
	remaining := make([]*models.Task, len(tasks))
	copy(remaining, tasks)

	for len(remaining) > 0 {
		var ready Batch
		var blocked []*models.Task

		for _, t := range remaining {
			if depsSatisfied(t, batched, completed) {
				ready = append(ready, t)
			} else {
				blocked = append(blocked, t)
			}
		}

		if len(ready) == 0 {
			// Cycle or dangling dependency. Force everything left
			// into a single terminal batch rather than hanging.
			final := make(Batch, len(blocked))
			copy(final, blocked)
			sortByPriority(final)
			for _, t := range final {
				p.Unresolved = append(p.Unresolved, t.ID)
			}
			p.Batches = append(p.Batches, final)
			return p
		}

		sortByPriority(ready)
		for _, t := range ready {
			batched[t.ID] = true
		}
		p.Batches = append(p.Batches, ready)
		remaining = blocked
	}

	return p
}

// depsSatisfied reports whether every dependency of t is either already
// batched or in the externally completed set.
func depsSatisfied(t *models.Task, batched, completed map[string]bool) bool {
	for _, depID := range t.DependsOn {
		if batched[depID] {
			continue
		}
		if completed != nil && completed[depID] {
			continue
		}
		return false
	}
	return true
}

// sortByPriority orders tasks by descending priority, stable for ties.
func sortByPriority(tasks []*models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority > tasks[j].Priority
	})
}

// SortByPriority orders tasks by descending priority, keeping the original
// order for equal priorities. Exposed for callers that schedule ready sets
// outside a full plan.
func SortByPriority(tasks []*models.Task) {
	sortByPriority(tasks)
}

// DanglingDeps returns, for the given tasks, the dependency IDs that are
// neither present in the task set nor in the completed set. These can never
// be satisfied and will trigger the forced-batch degradation in Resolve.
func DanglingDeps(tasks []*models.Task, completed map[string]bool) []string {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	seen := make(map[string]bool)
	var dangling []string
	for _, t := range tasks {
		for _, depID := range t.DependsOn {
			if known[depID] || (completed != nil && completed[depID]) || seen[depID] {
				continue
			}
			seen[depID] = true
			dangling = append(dangling, depID)
		}
	}
	sort.Strings(dangling)
	return dangling
}
