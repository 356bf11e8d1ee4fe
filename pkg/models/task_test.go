package models

import "testing"

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{
		TaskStatusPending,
		TaskStatusRunning,
		TaskStatusCompleted,
		TaskStatusFailed,
		TaskStatusSkipped,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if TaskStatus("unknown").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if TaskStatus("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskStatusPending, false},
		{TaskStatusRunning, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
		{TaskStatusSkipped, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("status %q: expected Terminal()=%v, got %v", tt.status, tt.terminal, got)
		}
	}
}

func TestCloneArgsDoesNotAliasOriginal(t *testing.T) {
	task := &Task{
		ID:   "t1",
		Args: map[string]any{"path": "main.go"},
	}

	args := task.CloneArgs()
	args["dep:t0"] = "output"

	if _, ok := task.Args["dep:t0"]; ok {
		t.Error("CloneArgs should not mutate the original task args")
	}
	if args["path"] != "main.go" {
		t.Errorf("expected cloned args to carry original entries, got %v", args["path"])
	}
}

func TestCloneArgsNilMap(t *testing.T) {
	task := &Task{ID: "t1"}

	args := task.CloneArgs()
	if args == nil {
		t.Fatal("expected non-nil map from CloneArgs")
	}
	args["k"] = "v"
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5, Cost: 0.01}
	u.Add(Usage{InputTokens: 90, OutputTokens: 45, Cost: 0.09})

	if u.InputTokens != 100 || u.OutputTokens != 50 {
		t.Errorf("unexpected token totals: %+v", u)
	}
	if u.TotalTokens() != 150 {
		t.Errorf("expected 150 total tokens, got %d", u.TotalTokens())
	}
	if u.Cost < 0.099 || u.Cost > 0.101 {
		t.Errorf("expected cost ~0.10, got %f", u.Cost)
	}
}

func TestTaskResultSucceeded(t *testing.T) {
	r := &TaskResult{TaskID: "t1", Status: TaskStatusCompleted}
	if !r.Succeeded() {
		t.Error("completed result should report success")
	}

	r.Status = TaskStatusFailed
	if r.Succeeded() {
		t.Error("failed result should not report success")
	}
}
