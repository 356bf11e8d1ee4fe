package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trellison/waggle/internal/state"
	"github.com/trellison/waggle/pkg/models"
)

var (
	statusLimit  int
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show run history",
	Long: `Display recorded swarm runs.

Without arguments, lists recent runs from the project history (falling back
to the global database). With a run ID, shows that run's tasks and
observations.

Use --format yaml or --format json to export a run for other tools.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of runs to list")
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "Output format: text, yaml, or json")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = state.GlobalDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history yet. Run 'waggle run <request>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate run history: %w", err)
	}

	if len(args) == 1 {
		return showRun(db, args[0])
	}
	return listRuns(db)
}

// listRuns prints recent run headers.
func listRuns(db *state.DB) error {
	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No run history yet. Run 'waggle run <request>' to start.")
		return nil
	}

	switch statusFormat {
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(exportRuns(runs))
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exportRuns(runs))
	}

	for _, run := range runs {
		statusColor(run.Status).Printf("%-10s %-20s", run.ID, run.Status)
		fmt.Printf(" %s  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04"), truncateRequest(run.Request, 60))
	}
	return nil
}

// showRun prints one run in full.
func showRun(db *state.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}

	switch statusFormat {
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(exportRun(run))
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exportRun(run))
	}

	statusColor(run.Status).Printf("run %s: %s\n", run.ID, run.Status)
	fmt.Printf("  request:    %s\n", run.Request)
	fmt.Printf("  started:    %s\n", run.StartedAt.Local().Format(time.RFC1123))
	fmt.Printf("  wall clock: %s\n", run.WallClock.Round(time.Millisecond))
	fmt.Printf("  tokens:     %d\n", run.Usage.TotalTokens())
	if run.Pivots > 0 {
		fmt.Printf("  pivots:     %d\n", run.Pivots)
	}

	if len(run.Tasks) > 0 {
		fmt.Println("\ntasks:")
		for _, t := range run.Tasks {
			c := statusColor(string(t.Status))
			c.Printf("  %-10s %-10s", t.TaskID, t.Status)
			fmt.Printf(" %s", t.Name)
			if t.Error != "" {
				fmt.Printf("  (%s)", t.Error)
			}
			fmt.Println()
		}
	}

	if len(run.Observations) > 0 {
		fmt.Println("\nobservations:")
		for _, o := range run.Observations {
			fmt.Printf("  [%s] %s: %s\n", o.CreatedAt.Local().Format("15:04:05"), o.Author, o.Note)
		}
	}
	return nil
}

// runExport is the stable shape written by --format yaml/json.
type runExport struct {
	ID        string       `yaml:"id" json:"id"`
	Request   string       `yaml:"request" json:"request"`
	Status    string       `yaml:"status" json:"status"`
	Pivots    int          `yaml:"pivots,omitempty" json:"pivots,omitempty"`
	Tokens    int64        `yaml:"tokens" json:"tokens"`
	WallClock string       `yaml:"wall_clock" json:"wall_clock"`
	StartedAt time.Time    `yaml:"started_at" json:"started_at"`
	Tasks     []taskExport `yaml:"tasks,omitempty" json:"tasks,omitempty"`
	Notes     []string     `yaml:"observations,omitempty" json:"observations,omitempty"`
}

type taskExport struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Status string `yaml:"status" json:"status"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`
}

func exportRun(run *state.RunRecord) runExport {
	out := runExport{
		ID:        run.ID,
		Request:   run.Request,
		Status:    run.Status,
		Pivots:    run.Pivots,
		Tokens:    run.Usage.TotalTokens(),
		WallClock: run.WallClock.Round(time.Millisecond).String(),
		StartedAt: run.StartedAt,
	}
	for _, t := range run.Tasks {
		out.Tasks = append(out.Tasks, taskExport{
			ID:     t.TaskID,
			Name:   t.Name,
			Status: string(t.Status),
			Error:  t.Error,
		})
	}
	for _, o := range run.Observations {
		out.Notes = append(out.Notes, fmt.Sprintf("%s: %s", o.Author, o.Note))
	}
	return out
}

func exportRuns(runs []*state.RunRecord) []runExport {
	out := make([]runExport, 0, len(runs))
	for _, r := range runs {
		out = append(out, exportRun(r))
	}
	return out
}

// statusColor maps a run or task status to a display color.
func statusColor(status string) *color.Color {
	switch status {
	case string(models.TaskStatusCompleted):
		return color.New(color.FgGreen)
	case "failed", "deadlocked":
		return color.New(color.FgRed)
	case string(models.TaskStatusRunning):
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgYellow)
	}
}

// truncateRequest shortens a request for the list view.
func truncateRequest(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
