// Package planner defines the decomposition interface the swarm coordinator
// consumes, plus the tolerant parser for planner output. The planner decides
// WHAT tasks exist; it never executes anything itself.
package planner

import (
	"context"
	"encoding/json"
	"strings"
)

// TaskSpec is one task descriptor returned by a decomposition or pivot call.
type TaskSpec struct {
	// ID is the planner-assigned task identifier. May be empty; callers
	// mint one in that case.
	ID string `json:"id"`
	// Description is the task description.
	Description string `json:"description"`
	// Agent names the executor capability that should run the task.
	Agent string `json:"agent"`
	// DependsOn lists the IDs of tasks that must complete first.
	DependsOn []string `json:"dependencies"`
	// Priority orders the task within its batch; higher runs earlier.
	Priority int `json:"priority,omitempty"`
}

// PlanContext carries prior progress into a pivot call so the planner can
// re-plan around failures without redoing completed work.
type PlanContext struct {
	// Completed lists descriptions of tasks that already succeeded.
	Completed []string
	// Failed lists descriptions (with reasons) of tasks that failed.
	Failed []string
	// Notes carries extra observations for the planner.
	Notes []string
}

// Empty reports whether there is no prior progress to convey.
func (c PlanContext) Empty() bool {
	return len(c.Completed) == 0 && len(c.Failed) == 0 && len(c.Notes) == 0
}

// Planner decomposes a request into task descriptors. It is called once for
// the initial decomposition and again, with prior success/failure context,
// for each pivot.
type Planner interface {
	Decompose(ctx context.Context, request string, pc PlanContext) ([]TaskSpec, error)
}

// ParseTaskSpecs extracts task descriptors from planner output. It tolerates
// markdown-fenced or bare JSON and surrounding prose; the JSON array is
// located positionally. Malformed output yields nil: "no plan available" is
// data for the coordinator, not an error.
func ParseTaskSpecs(text string) []TaskSpec {
	text = stripFences(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end <= start {
		return nil
	}

	var specs []TaskSpec
	if err := json.Unmarshal([]byte(text[start:end+1]), &specs); err != nil {
		return nil
	}

	// Drop entries with no description; they carry nothing actionable.
	out := specs[:0]
	for _, s := range specs {
		if strings.TrimSpace(s.Description) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// stripFences removes markdown code fences so a fenced JSON body parses the
// same as a bare one.
func stripFences(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
