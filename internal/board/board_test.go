package board

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/trellison/waggle/pkg/models"
)

func newTask(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Name: "task " + id, Capability: "coder", DependsOn: deps}
}

func TestRegisterStartsPending(t *testing.T) {
	b := New()
	b.Register(newTask("t1"))

	rec, ok := b.Get("t1")
	if !ok {
		t.Fatal("expected record for t1")
	}
	if rec.Status != models.TaskStatusPending {
		t.Errorf("expected pending, got %s", rec.Status)
	}
	if rec.Agent != "coder" {
		t.Errorf("expected agent label carried over, got %q", rec.Agent)
	}
}

func TestRegisterDuplicateIsNoOp(t *testing.T) {
	b := New()
	b.Register(newTask("t1"))
	b.UpdateStatus("t1", models.TaskStatusRunning, nil, "")

	b.Register(newTask("t1"))

	rec, _ := b.Get("t1")
	if rec.Status != models.TaskStatusRunning {
		t.Errorf("duplicate register must not reset status, got %s", rec.Status)
	}
	if b.Size() != 1 {
		t.Errorf("expected 1 record, got %d", b.Size())
	}
}

func TestStatusLifecycle(t *testing.T) {
	b := New()
	b.Register(newTask("t1"))

	b.UpdateStatus("t1", models.TaskStatusRunning, nil, "")
	b.UpdateStatus("t1", models.TaskStatusCompleted, "payload", "")

	rec, _ := b.Get("t1")
	if rec.Status != models.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Status)
	}
	if rec.Result != "payload" {
		t.Errorf("expected result payload, got %v", rec.Result)
	}
}

func TestTerminalStatusNeverReverts(t *testing.T) {
	b := New()
	b.Register(newTask("t1"))
	b.UpdateStatus("t1", models.TaskStatusRunning, nil, "")
	b.UpdateStatus("t1", models.TaskStatusFailed, nil, "broke")

	b.UpdateStatus("t1", models.TaskStatusPending, nil, "")
	b.UpdateStatus("t1", models.TaskStatusCompleted, "late", "")

	rec, _ := b.Get("t1")
	if rec.Status != models.TaskStatusFailed {
		t.Errorf("terminal status must not revert, got %s", rec.Status)
	}
	if rec.Error != "broke" {
		t.Errorf("expected original error kept, got %q", rec.Error)
	}
}

func TestUpdateUnknownIDIsLoggedNoOp(t *testing.T) {
	b := New()
	var logged []string
	b.SetLogFunc(func(format string, args ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, args...))
	})

	b.UpdateStatus("ghost", models.TaskStatusCompleted, nil, "")

	if b.Size() != 0 {
		t.Errorf("no record should be created, got %d", b.Size())
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "ghost") {
		t.Errorf("update of unknown ID must be observable in the log, got %v", logged)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	b := New()
	b.Register(newTask("t1"))

	snap := b.Snapshot()
	snap[0].Status = models.TaskStatusFailed

	rec, _ := b.Get("t1")
	if rec.Status != models.TaskStatusPending {
		t.Error("snapshot mutation leaked into the board")
	}
}

func TestSnapshotRegistrationOrder(t *testing.T) {
	b := New()
	for _, id := range []string{"c", "a", "b"} {
		b.Register(newTask(id))
	}

	snap := b.Snapshot()
	got := []string{snap[0].ID, snap[1].ID, snap[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSummaryCounts(t *testing.T) {
	b := New()
	b.Register(newTask("t1"))
	b.Register(newTask("t2"))
	b.Register(newTask("t3"))
	b.UpdateStatus("t1", models.TaskStatusRunning, nil, "")
	b.UpdateStatus("t2", models.TaskStatusCompleted, nil, "")

	sum := b.Summary()
	if sum[models.TaskStatusPending] != 1 || sum[models.TaskStatusRunning] != 1 || sum[models.TaskStatusCompleted] != 1 {
		t.Errorf("unexpected summary: %v", sum)
	}
}

func TestObservationsAppendOnly(t *testing.T) {
	b := New()
	b.AddObservation("planner", "decomposed into 3 tasks")
	b.AddObservation("coder", "found flaky test")

	obs := b.Observations()
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].Agent != "planner" || obs[1].Agent != "coder" {
		t.Errorf("observations out of order: %v", obs)
	}
	if obs[0].At.IsZero() {
		t.Error("observation must carry a timestamp")
	}
}

func TestStatusSets(t *testing.T) {
	b := New()
	b.Register(newTask("p"))
	b.Register(newTask("r"))
	b.Register(newTask("c"))
	b.Register(newTask("f"))
	b.Register(newTask("s"))
	b.UpdateStatus("r", models.TaskStatusRunning, nil, "")
	b.UpdateStatus("c", models.TaskStatusCompleted, nil, "")
	b.UpdateStatus("f", models.TaskStatusFailed, nil, "err")
	b.UpdateStatus("s", models.TaskStatusSkipped, nil, "")

	pending, running, completed, failed := b.StatusSets()
	if !pending["p"] || len(pending) != 1 {
		t.Errorf("bad pending set: %v", pending)
	}
	if !running["r"] || len(running) != 1 {
		t.Errorf("bad running set: %v", running)
	}
	if !completed["c"] || len(completed) != 1 {
		t.Errorf("bad completed set: %v", completed)
	}
	// Skipped counts as failed for progress purposes.
	if !failed["f"] || !failed["s"] || len(failed) != 2 {
		t.Errorf("bad failed set: %v", failed)
	}
}

func TestNotifySignalsOnMutation(t *testing.T) {
	b := New()

	select {
	case <-b.Notify():
		t.Fatal("no signal expected before any mutation")
	default:
	}

	b.Register(newTask("t1"))

	select {
	case <-b.Notify():
	default:
		t.Fatal("expected a signal after registration")
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", n)
			b.Register(newTask(id))
			b.UpdateStatus(id, models.TaskStatusRunning, nil, "")
			b.UpdateStatus(id, models.TaskStatusCompleted, nil, "")
			b.Snapshot()
			b.Summary()
		}(i)
	}
	wg.Wait()

	if b.Size() != 50 {
		t.Errorf("expected 50 records, got %d", b.Size())
	}
	if got := b.Summary()[models.TaskStatusCompleted]; got != 50 {
		t.Errorf("expected 50 completed, got %d", got)
	}
}
