// Package tui provides the live watch view for a swarm run. It renders the
// blackboard as a task table with a rolling event log underneath; all state
// it shows is re-read from the board on every frame, so the view never holds
// scheduling state of its own.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trellison/waggle/internal/board"
	"github.com/trellison/waggle/internal/swarm"
	"github.com/trellison/waggle/pkg/models"
)

const maxEventLines = 8

// eventMsg wraps a coordinator event for the update loop.
type eventMsg swarm.Event

// tickMsg drives periodic repaints between events.
type tickMsg time.Time

// WatchModel is the bubbletea model for `waggle run --watch`.
type WatchModel struct {
	board   *board.Board
	events  <-chan swarm.Event
	spinner spinner.Model
	refresh time.Duration

	eventLog []string
	width    int
	done     bool
	final    string
	quitting bool
}

// NewWatch creates a watch model over a run's blackboard and event stream.
func NewWatch(b *board.Board, events <-chan swarm.Event, refresh time.Duration) *WatchModel {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle

	return &WatchModel{
		board:   b,
		events:  events,
		spinner: sp,
		refresh: refresh,
		width:   80,
	}
}

// Init implements tea.Model.
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent(), m.tick())
}

// waitForEvent blocks on the coordinator's event channel.
func (m *WatchModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// tick schedules the next repaint.
func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case eventMsg:
		m.appendEvent(swarm.Event(msg))
		if msg.Type == swarm.EventSwarmDone {
			m.done = true
			m.final = msg.Message
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case tickMsg:
		if m.done || m.quitting {
			return m, nil
		}
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// appendEvent adds an event line to the rolling log.
func (m *WatchModel) appendEvent(ev swarm.Event) {
	line := formatEvent(ev)
	if line == "" {
		return
	}
	m.eventLog = append(m.eventLog, line)
	if len(m.eventLog) > maxEventLines {
		m.eventLog = m.eventLog[len(m.eventLog)-maxEventLines:]
	}
}

// formatEvent renders one coordinator event as a log line.
func formatEvent(ev swarm.Event) string {
	stamp := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case swarm.EventDecomposed:
		return fmt.Sprintf("%s plan: %s", stamp, ev.Message)
	case swarm.EventTaskStarted:
		return fmt.Sprintf("%s start %s %s", stamp, ev.TaskID, truncate(ev.Description, 50))
	case swarm.EventTaskCompleted:
		return fmt.Sprintf("%s done  %s", stamp, ev.TaskID)
	case swarm.EventTaskFailed:
		return fmt.Sprintf("%s fail  %s: %s", stamp, ev.TaskID, truncate(ev.Message, 50))
	case swarm.EventPivotStarted:
		return fmt.Sprintf("%s pivot after %s", stamp, ev.TaskID)
	case swarm.EventPivotMerged:
		return fmt.Sprintf("%s pivot merged: %s", stamp, ev.Message)
	case swarm.EventPivotEmpty:
		return fmt.Sprintf("%s pivot empty: %s", stamp, ev.Message)
	case swarm.EventTaskInjected:
		return fmt.Sprintf("%s inject: %s", stamp, ev.Message)
	case swarm.EventUnresolvable:
		return fmt.Sprintf("%s warn: %s", stamp, ev.Message)
	case swarm.EventDeadlock:
		return fmt.Sprintf("%s deadlock: %s", stamp, ev.Message)
	case swarm.EventSwarmDone:
		return fmt.Sprintf("%s run finished: %s", stamp, ev.Message)
	default:
		return ""
	}
}

// View implements tea.Model.
func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := titleStyle.Render("waggle")
	sub := subtitleStyle.Render("swarm watch")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Bottom, title, "  ", sub))
	b.WriteString("\n\n")

	b.WriteString(m.renderSummary())
	b.WriteString("\n\n")
	b.WriteString(m.renderTasks())

	if len(m.eventLog) > 0 {
		b.WriteString("\n")
		for _, line := range m.eventLog {
			b.WriteString(eventStyle.Render(truncate(line, m.width-2)))
			b.WriteString("\n")
		}
	}

	if m.done {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render(fmt.Sprintf("run %s", m.final)))
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
		b.WriteString(footerStyle.Render("q quit"))
		b.WriteString("\n")
	}

	return b.String()
}

// renderSummary shows per-status counts and the spinner while running.
func (m *WatchModel) renderSummary() string {
	counts := m.board.Summary()
	parts := []string{
		completedStyle.Render(fmt.Sprintf("%d done", counts[models.TaskStatusCompleted])),
		runningStyle.Render(fmt.Sprintf("%d running", counts[models.TaskStatusRunning])),
		pendingStyle.Render(fmt.Sprintf("%d pending", counts[models.TaskStatusPending])),
	}
	if n := counts[models.TaskStatusFailed]; n > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", n)))
	}
	if n := counts[models.TaskStatusSkipped]; n > 0 {
		parts = append(parts, skippedStyle.Render(fmt.Sprintf("%d skipped", n)))
	}

	line := strings.Join(parts, "  ")
	if !m.done {
		line = m.spinner.View() + " " + line
	}
	return line
}

// renderTasks renders one line per board record in registration order.
func (m *WatchModel) renderTasks() string {
	var b strings.Builder
	for _, rec := range m.board.Snapshot() {
		style := statusStyle(rec.Status)
		line := fmt.Sprintf("%s %-10s %s", statusGlyph(rec.Status), rec.ID, truncate(rec.Description, m.width-16))
		if rec.Status == models.TaskStatusFailed && rec.Error != "" {
			line += "  (" + truncate(rec.Error, 40) + ")"
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 3 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// Run starts the watch program and blocks until it exits.
func Run(b *board.Board, events <-chan swarm.Event, refresh time.Duration) error {
	p := tea.NewProgram(NewWatch(b, events, refresh))
	_, err := p.Run()
	return err
}
