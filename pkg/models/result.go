package models

import "time"

// Usage holds resource consumption counters for a single task attempt.
type Usage struct {
	// InputTokens is the number of prompt tokens consumed.
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the number of completion tokens produced.
	OutputTokens int64 `json:"output_tokens"`
	// Cost is the monetary cost in dollars.
	Cost float64 `json:"cost"`
}

// Add accumulates another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Cost += other.Cost
}

// TotalTokens returns the combined input and output token count.
func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// TaskResult records the outcome of a single task attempt. It is produced
// exactly once per attempt by the dispatcher and owned by the batch runner
// until merged into the aggregate run result.
type TaskResult struct {
	// TaskID is the ID of the task this result belongs to.
	TaskID string `json:"task_id"`
	// Name is the task's display name, carried for reporting.
	Name string `json:"name"`
	// Status is the terminal status of the attempt.
	Status TaskStatus `json:"status"`
	// Output is the executor's output value, or nil on failure.
	Output any `json:"output,omitempty"`
	// Error describes why the attempt failed, empty on success.
	Error string `json:"error,omitempty"`
	// StartedAt is when the task body began executing. Zero if the task
	// never started (budget refusal, skip).
	StartedAt time.Time `json:"started_at,omitempty"`
	// EndedAt is when the attempt reached a terminal status.
	EndedAt time.Time `json:"ended_at,omitempty"`
	// Duration is the elapsed execution time of the attempt.
	Duration time.Duration `json:"duration"`
	// Usage holds resource counters reported by the executor.
	Usage Usage `json:"usage"`
}

// Succeeded returns true if the attempt completed successfully.
func (r *TaskResult) Succeeded() bool {
	return r.Status == TaskStatusCompleted
}
