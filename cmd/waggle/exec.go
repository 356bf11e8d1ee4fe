package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trellison/waggle/internal/agent"
	"github.com/trellison/waggle/internal/board"
	"github.com/trellison/waggle/internal/budget"
	"github.com/trellison/waggle/internal/config"
	"github.com/trellison/waggle/internal/dispatch"
	"github.com/trellison/waggle/internal/plan"
	"github.com/trellison/waggle/internal/runner"
	"github.com/trellison/waggle/internal/state"
	"github.com/trellison/waggle/internal/swarm"
	"github.com/trellison/waggle/pkg/models"
)

var (
	execFailFast    bool
	execDryRun      bool
	execMaxParallel int
)

var execCmd = &cobra.Command{
	Use:   "exec <taskfile>",
	Short: "Execute a static task plan from a file",
	Long: `Execute a hand-written task plan without the planner.

The task file (YAML or JSON) declares tasks with dependencies; waggle
resolves them into dependency-ordered batches and runs each batch with
join-all semantics. Unlike 'run', the plan is fixed: there is no pivoting
and no task injection.

Task file format:
  tasks:
    - id: fetch
      description: fetch the source data
      priority: 2
    - id: report
      description: write the report
      dependencies: [fetch]
      timeout: 2m

Examples:
  waggle exec plan.yaml
  waggle exec --dry-run plan.yaml
  waggle exec --fail-fast --max-parallel 2 plan.yaml`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runExec,
}

func init() {
	execCmd.Flags().BoolVar(&execFailFast, "fail-fast", false, "Skip remaining batches after the first failure")
	execCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "Resolve and print the batch plan without executing")
	execCmd.Flags().IntVar(&execMaxParallel, "max-parallel", 0, "Maximum concurrent tasks (overrides config)")
}

// taskFileEntry is the on-disk shape of one task.
type taskFileEntry struct {
	ID              string         `yaml:"id" json:"id"`
	Description     string         `yaml:"description" json:"description"`
	Agent           string         `yaml:"agent" json:"agent"`
	Dependencies    []string       `yaml:"dependencies" json:"dependencies"`
	Priority        int            `yaml:"priority" json:"priority"`
	Timeout         string         `yaml:"timeout" json:"timeout"`
	ContinueOnError bool           `yaml:"continue_on_error" json:"continue_on_error"`
	Args            map[string]any `yaml:"args" json:"args"`
}

// taskFile is the on-disk plan document.
type taskFile struct {
	Tasks []taskFileEntry `yaml:"tasks" json:"tasks"`
}

// loadTaskFile parses a task file into tasks. YAML is a superset of JSON, so
// one decoder covers both formats.
func loadTaskFile(path string) ([]*models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var doc taskFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if len(doc.Tasks) == 0 {
		return nil, fmt.Errorf("task file declares no tasks")
	}

	now := time.Now()
	tasks := make([]*models.Task, 0, len(doc.Tasks))
	for i, e := range doc.Tasks {
		if strings.TrimSpace(e.Description) == "" {
			return nil, fmt.Errorf("task %d has no description", i+1)
		}

		id := e.ID
		if id == "" {
			id = uuid.New().String()[:8]
		}
		capability := e.Agent
		if capability == "" {
			capability = "claude"
		}

		var timeout time.Duration
		if e.Timeout != "" {
			timeout, err = time.ParseDuration(e.Timeout)
			if err != nil {
				return nil, fmt.Errorf("task %s: bad timeout %q: %w", id, e.Timeout, err)
			}
		}

		tasks = append(tasks, &models.Task{
			ID:              id,
			Name:            e.Description,
			Capability:      capability,
			Args:            e.Args,
			DependsOn:       e.Dependencies,
			Priority:        e.Priority,
			Timeout:         timeout,
			ContinueOnError: e.ContinueOnError,
			CreatedAt:       now,
		})
	}
	return tasks, nil
}

// boardTracker mirrors runner lifecycle transitions onto a blackboard.
type boardTracker struct {
	b *board.Board
}

func (t boardTracker) TaskStarted(taskID string) {
	t.b.UpdateStatus(taskID, models.TaskStatusRunning, nil, "")
}

func (t boardTracker) TaskFinished(res *models.TaskResult) {
	t.b.UpdateStatus(res.TaskID, res.Status, res.Output, res.Error)
}

func runExec(cmd *cobra.Command, args []string) error {
	tasks, err := loadTaskFile(args[0])
	if err != nil {
		return err
	}

	p := plan.Resolve(tasks, nil)
	if len(p.Unresolved) > 0 {
		color.Yellow("warning: unresolvable dependencies, order degrades to a final batch: %s",
			strings.Join(p.Unresolved, ", "))
	}

	if execDryRun {
		printPlan(p)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("max-parallel") {
		cfg.Swarm.MaxParallel = execMaxParallel
	}

	meter := budget.NewMeter(int64(cfg.Swarm.TokenBudget))
	claudeCfg, err := newClaudeConfig(cfg, meter)
	if err != nil {
		return err
	}
	executor, err := agent.New(claudeCfg)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}

	reg := swarm.NewRegistry()
	if err := reg.Register(swarm.Capability{
		Name:        "claude",
		Description: "general-purpose Claude worker",
		Exec:        executor.Exec,
	}); err != nil {
		return fmt.Errorf("register capability: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	logger := swarm.NewDebugLoggerForDir(cwd)
	defer logger.Close()

	b := board.New()
	for _, t := range tasks {
		b.Register(t)
	}

	d := dispatch.New(cfg.Swarm.MaxParallel, dispatch.WithGate(meter), dispatch.WithLogFunc(logger.Log))
	r := runner.New(d, reg.Lookup,
		runner.WithFailFast(execFailFast),
		runner.WithTracker(boardTracker{b}),
		runner.WithLogFunc(logger.Log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	runID := uuid.New().String()[:8]
	result := r.Run(ctx, p)

	printExecResult(runID, tasks, result)
	saveExecRun(cwd, runID, args[0], started, b, result)

	if !result.Succeeded() {
		return fmt.Errorf("plan finished with %d failed, %d skipped", result.Failed, result.Skipped)
	}
	return nil
}

// printPlan renders the resolved batches.
func printPlan(p *plan.ExecutionPlan) {
	for i, batch := range p.Batches {
		fmt.Printf("batch %d:\n", i+1)
		for _, t := range batch {
			deps := ""
			if len(t.DependsOn) > 0 {
				deps = "  (after " + strings.Join(t.DependsOn, ", ") + ")"
			}
			fmt.Printf("  %-10s %s%s\n", t.ID, t.Name, deps)
		}
	}
	if len(p.Unresolved) > 0 {
		fmt.Printf("unresolved: %s\n", strings.Join(p.Unresolved, ", "))
	}
}

// printExecResult renders per-task outcomes and the parallelism summary.
func printExecResult(runID string, tasks []*models.Task, result *runner.RunResult) {
	fmt.Println()
	for _, t := range tasks {
		res, ok := result.Results[t.ID]
		if !ok {
			continue
		}
		switch res.Status {
		case models.TaskStatusCompleted:
			color.Green("✓ %s %s (%s)", t.ID, t.Name, res.Duration.Round(time.Millisecond))
		case models.TaskStatusSkipped:
			color.Yellow("− %s %s (skipped)", t.ID, t.Name)
		default:
			color.Red("✗ %s %s: %s", t.ID, t.Name, res.Error)
		}
	}

	fmt.Println()
	if result.Succeeded() {
		color.Green("plan %s completed", runID)
	} else {
		color.Red("plan %s: %d completed, %d failed, %d skipped", runID, result.Completed, result.Failed, result.Skipped)
	}
	fmt.Printf("  %d tokens in %s (%.1fx parallel speedup)\n",
		result.Usage.TotalTokens(), result.WallClock.Round(time.Millisecond), result.Speedup)
}

// saveExecRun records the static plan run in the project history.
func saveExecRun(projectRoot, runID, source string, started time.Time, b *board.Board, result *runner.RunResult) {
	db, err := state.OpenProject(projectRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: open run history: %v\n", err)
		return
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: migrate run history: %v\n", err)
		return
	}

	status := "completed"
	if !result.Succeeded() {
		status = "partially_completed"
	}

	finished := started.Add(result.WallClock)
	rec := &state.RunRecord{
		ID:         runID,
		Request:    "exec " + source,
		Status:     status,
		Usage:      result.Usage,
		WallClock:  result.WallClock,
		StartedAt:  started,
		FinishedAt: &finished,
	}
	for _, r := range b.Snapshot() {
		tr := state.TaskRecord{
			TaskID:     r.ID,
			Name:       r.Description,
			Capability: r.Agent,
			Status:     r.Status,
			Error:      r.Error,
		}
		if res, ok := result.Results[r.ID]; ok {
			tr.Duration = res.Duration
		}
		rec.Tasks = append(rec.Tasks, tr)
	}

	if err := db.SaveRun(rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: save run: %v\n", err)
	}
}
