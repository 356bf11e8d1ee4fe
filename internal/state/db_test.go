package state

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/trellison/waggle/pkg/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleRun(id string, started time.Time) *RunRecord {
	finished := started.Add(3 * time.Second)
	return &RunRecord{
		ID:         id,
		Request:    "build the importer",
		Status:     "completed",
		Pivots:     1,
		Usage:      models.Usage{InputTokens: 1200, OutputTokens: 800, Cost: 0.42},
		WallClock:  3 * time.Second,
		StartedAt:  started,
		FinishedAt: &finished,
		Tasks: []TaskRecord{
			{TaskID: "t1", Name: "parse input", Capability: "claude", Status: models.TaskStatusCompleted, Priority: 2, Duration: time.Second},
			{TaskID: "t2", Name: "write output", Capability: "claude", Status: models.TaskStatusFailed, Error: "disk full"},
		},
		Observations: []ObservationRecord{
			{Author: "planner", Note: "decomposed request into 2 tasks", CreatedAt: started},
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var version int
	row := db.QueryRow("SELECT MAX(version) FROM schema_version")
	if err := row.Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != 3 {
		t.Errorf("expected schema version 3, got %d", version)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := testDB(t)
	want := sampleRun("run-1", time.Now().Add(-time.Minute))

	if err := db.SaveRun(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Request != want.Request || got.Status != want.Status || got.Pivots != want.Pivots {
		t.Errorf("run header mismatch: %+v", got)
	}
	if got.Usage.TotalTokens() != 2000 || got.Usage.Cost != 0.42 {
		t.Errorf("usage mismatch: %+v", got.Usage)
	}
	if got.WallClock != 3*time.Second {
		t.Errorf("wall clock mismatch: %s", got.WallClock)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at to round-trip")
	}

	if len(got.Tasks) != 2 {
		t.Fatalf("expected 2 task records, got %d", len(got.Tasks))
	}
	if got.Tasks[0].TaskID != "t1" || got.Tasks[0].Status != models.TaskStatusCompleted {
		t.Errorf("task record mismatch: %+v", got.Tasks[0])
	}
	if got.Tasks[1].Error != "disk full" {
		t.Errorf("task error mismatch: %+v", got.Tasks[1])
	}

	if len(got.Observations) != 1 || got.Observations[0].Author != "planner" {
		t.Errorf("observations mismatch: %+v", got.Observations)
	}
}

func TestSaveRunReplaces(t *testing.T) {
	db := testDB(t)
	run := sampleRun("run-1", time.Now().Add(-time.Minute))
	if err := db.SaveRun(run); err != nil {
		t.Fatalf("save: %v", err)
	}

	run.Status = "partially_completed"
	run.Tasks = run.Tasks[:1]
	if err := db.SaveRun(run); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "partially_completed" {
		t.Errorf("status not replaced: %s", got.Status)
	}
	if len(got.Tasks) != 1 {
		t.Errorf("expected task records replaced, got %d", len(got.Tasks))
	}
}

func TestSaveRunRequiresID(t *testing.T) {
	db := testDB(t)
	if err := db.SaveRun(&RunRecord{}); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestGetRunMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetRun("nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := testDB(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		run := sampleRun(id, base.Add(time.Duration(i)*time.Minute))
		if err := db.SaveRun(run); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "new" || runs[2].ID != "old" {
		t.Errorf("expected newest first, got %s..%s", runs[0].ID, runs[2].ID)
	}

	limited, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("limited list: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs with limit, got %d", len(limited))
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := testDB(t)
	if err := db.SaveRun(sampleRun("stale", time.Now().Add(-48*time.Hour))); err != nil {
		t.Fatalf("save stale: %v", err)
	}
	if err := db.SaveRun(sampleRun("fresh", time.Now())); err != nil {
		t.Fatalf("save fresh: %v", err)
	}

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged run, got %d", n)
	}

	if _, err := db.GetRun("stale"); !errors.Is(err, sql.ErrNoRows) {
		t.Error("stale run must be gone")
	}
	if _, err := db.GetRun("fresh"); err != nil {
		t.Errorf("fresh run must survive: %v", err)
	}

	// Cascade removed the stale run's children.
	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM task_records WHERE run_id = 'stale'")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count task records: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascaded delete of task records, got %d", count)
	}
}
