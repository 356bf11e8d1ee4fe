package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trellison/waggle/pkg/models"
)

// RunRecord is one completed swarm run as persisted to history.
type RunRecord struct {
	ID         string
	Request    string
	Status     string
	Pivots     int
	Usage      models.Usage
	WallClock  time.Duration
	StartedAt  time.Time
	FinishedAt *time.Time

	Tasks        []TaskRecord
	Observations []ObservationRecord
}

// TaskRecord is one task's terminal state within a run.
type TaskRecord struct {
	TaskID     string
	Name       string
	Capability string
	Status     models.TaskStatus
	Error      string
	Priority   int
	Duration   time.Duration
}

// ObservationRecord is a free-form note recorded during a run.
type ObservationRecord struct {
	Author    string
	Note      string
	CreatedAt time.Time
}

// SaveRun persists a run with its task records and observations in one
// transaction. Saving an existing run ID replaces its rows.
func (db *DB) SaveRun(run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id must not be empty")
	}

	return db.Transaction(func(tx *sql.Tx) error {
		var finishedAt any
		if run.FinishedAt != nil {
			finishedAt = formatTime(*run.FinishedAt)
		}

		_, err := tx.Exec(`
			INSERT OR REPLACE INTO runs
				(id, request, status, pivots, input_tokens, output_tokens, cost, wall_clock_ms, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.Request, run.Status, run.Pivots,
			run.Usage.InputTokens, run.Usage.OutputTokens, run.Usage.Cost,
			run.WallClock.Milliseconds(), formatTime(run.StartedAt), finishedAt)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}

		if _, err := tx.Exec("DELETE FROM task_records WHERE run_id = ?", run.ID); err != nil {
			return fmt.Errorf("clear task records for %s: %w", run.ID, err)
		}
		for _, t := range run.Tasks {
			_, err := tx.Exec(`
				INSERT INTO task_records
					(run_id, task_id, name, capability, status, error, priority, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, run.ID, t.TaskID, t.Name, t.Capability, string(t.Status), t.Error, t.Priority, t.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("insert task record %s/%s: %w", run.ID, t.TaskID, err)
			}
		}

		if _, err := tx.Exec("DELETE FROM observations WHERE run_id = ?", run.ID); err != nil {
			return fmt.Errorf("clear observations for %s: %w", run.ID, err)
		}
		for _, o := range run.Observations {
			_, err := tx.Exec(`
				INSERT INTO observations (run_id, author, note, created_at)
				VALUES (?, ?, ?, ?)
			`, run.ID, o.Author, o.Note, formatTime(o.CreatedAt))
			if err != nil {
				return fmt.Errorf("insert observation for %s: %w", run.ID, err)
			}
		}

		return nil
	})
}

// ListRuns returns run headers, newest first, without task records or
// observations. limit <= 0 means no limit.
func (db *DB) ListRuns(limit int) ([]*RunRecord, error) {
	query := `
		SELECT id, request, status, pivots, input_tokens, output_tokens, cost, wall_clock_ms, started_at, finished_at
		FROM runs ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a full run record by ID, including task records and
// observations. Returns sql.ErrNoRows when the run does not exist.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	row := db.QueryRow(`
		SELECT id, request, status, pivots, input_tokens, output_tokens, cost, wall_clock_ms, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	taskRows, err := db.Query(`
		SELECT task_id, name, capability, status, error, priority, duration_ms
		FROM task_records WHERE run_id = ? ORDER BY task_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load task records for %s: %w", id, err)
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var t TaskRecord
		var status string
		var errStr, capability sql.NullString
		var durationMs int64
		if err := taskRows.Scan(&t.TaskID, &t.Name, &capability, &status, &errStr, &t.Priority, &durationMs); err != nil {
			return nil, fmt.Errorf("scan task record: %w", err)
		}
		t.Status = models.TaskStatus(status)
		t.Error = errStr.String
		t.Capability = capability.String
		t.Duration = time.Duration(durationMs) * time.Millisecond
		run.Tasks = append(run.Tasks, t)
	}
	if err := taskRows.Err(); err != nil {
		return nil, err
	}

	obsRows, err := db.Query(`
		SELECT author, note, created_at
		FROM observations WHERE run_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load observations for %s: %w", id, err)
	}
	defer obsRows.Close()

	for obsRows.Next() {
		var o ObservationRecord
		var createdAt string
		if err := obsRows.Scan(&o.Author, &o.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if t, err := parseTime(createdAt); err == nil {
			o.CreatedAt = t
		}
		run.Observations = append(run.Observations, o)
	}
	return run, obsRows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRecord, error) {
	var run RunRecord
	var startedAt string
	var finishedAt sql.NullString
	var wallClockMs int64

	err := s.Scan(&run.ID, &run.Request, &run.Status, &run.Pivots,
		&run.Usage.InputTokens, &run.Usage.OutputTokens, &run.Usage.Cost,
		&wallClockMs, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.WallClock = time.Duration(wallClockMs) * time.Millisecond
	if t, err := parseTime(startedAt); err == nil {
		run.StartedAt = t
	}
	run.FinishedAt = parseNullableTime(finishedAt)
	return &run, nil
}
