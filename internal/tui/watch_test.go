package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/trellison/waggle/internal/board"
	"github.com/trellison/waggle/internal/swarm"
	"github.com/trellison/waggle/pkg/models"
)

func testBoard(t *testing.T) *board.Board {
	t.Helper()
	b := board.New()
	b.Register(&models.Task{ID: "t1", Name: "fetch the feed"})
	b.Register(&models.Task{ID: "t2", Name: "parse entries", DependsOn: []string{"t1"}})
	return b
}

func TestViewListsBoardRecords(t *testing.T) {
	b := testBoard(t)
	b.UpdateStatus("t1", models.TaskStatusRunning, nil, "")

	m := NewWatch(b, make(chan swarm.Event), 0)
	view := m.View()

	if !strings.Contains(view, "t1") || !strings.Contains(view, "t2") {
		t.Errorf("view missing task ids:\n%s", view)
	}
	if !strings.Contains(view, "fetch the feed") {
		t.Errorf("view missing task description:\n%s", view)
	}
	if !strings.Contains(view, "1 running") {
		t.Errorf("view missing running count:\n%s", view)
	}
}

func TestViewShowsFailureReason(t *testing.T) {
	b := testBoard(t)
	b.UpdateStatus("t1", models.TaskStatusFailed, nil, "timeout after 5s")

	m := NewWatch(b, make(chan swarm.Event), 0)
	view := m.View()

	if !strings.Contains(view, "timeout after 5s") {
		t.Errorf("view missing failure reason:\n%s", view)
	}
	if !strings.Contains(view, "1 failed") {
		t.Errorf("view missing failed count:\n%s", view)
	}
}

func TestUpdateQuitsOnKey(t *testing.T) {
	m := NewWatch(testBoard(t), make(chan swarm.Event), 0)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestUpdateQuitsWhenRunDone(t *testing.T) {
	m := NewWatch(testBoard(t), make(chan swarm.Event), 0)

	model, cmd := m.Update(eventMsg(swarm.Event{
		Type:      swarm.EventSwarmDone,
		Message:   "completed",
		Timestamp: time.Now(),
	}))
	if cmd == nil {
		t.Fatal("expected quit command after swarm_done")
	}

	got := model.(*WatchModel)
	if !got.done {
		t.Error("model must be marked done")
	}
	if !strings.Contains(got.View(), "completed") {
		t.Errorf("final view missing outcome:\n%s", got.View())
	}
}

func TestEventLogRolls(t *testing.T) {
	m := NewWatch(testBoard(t), make(chan swarm.Event), 0)

	for i := 0; i < maxEventLines+5; i++ {
		m.appendEvent(swarm.Event{
			Type:      swarm.EventTaskCompleted,
			TaskID:    "t1",
			Timestamp: time.Now(),
		})
	}
	if len(m.eventLog) != maxEventLines {
		t.Errorf("expected event log capped at %d, got %d", maxEventLines, len(m.eventLog))
	}
}

func TestFormatEventCoverage(t *testing.T) {
	now := time.Now()
	cases := []swarm.Event{
		{Type: swarm.EventDecomposed, Message: "plan has 3 tasks", Timestamp: now},
		{Type: swarm.EventTaskStarted, TaskID: "a", Description: "do work", Timestamp: now},
		{Type: swarm.EventTaskFailed, TaskID: "a", Message: "boom", Timestamp: now},
		{Type: swarm.EventPivotMerged, Message: "2 new tasks", Timestamp: now},
		{Type: swarm.EventDeadlock, Message: "1 tasks unmet: b", Timestamp: now},
	}
	for _, ev := range cases {
		if formatEvent(ev) == "" {
			t.Errorf("event %s rendered empty", ev.Type)
		}
	}

	if formatEvent(swarm.Event{Type: swarm.EventTaskQueued, Timestamp: now}) != "" {
		t.Error("queued events are not displayed")
	}
}
