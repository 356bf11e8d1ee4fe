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

	"github.com/trellison/waggle/internal/agent"
	"github.com/trellison/waggle/internal/budget"
	"github.com/trellison/waggle/internal/config"
	"github.com/trellison/waggle/internal/inject"
	"github.com/trellison/waggle/internal/planner"
	"github.com/trellison/waggle/internal/state"
	"github.com/trellison/waggle/internal/swarm"
	"github.com/trellison/waggle/internal/tui"
)

var (
	runMaxParallel int
	runBudget      int
	runMaxPivots   int
	runTimeout     time.Duration
	runWatch       bool
	runInjectDir   string
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run a request as a parallel task swarm",
	Long: `Run a request by decomposing it into tasks and executing them with
maximal safe parallelism.

The planner breaks the request into a dependency-ordered plan. Independent
tasks run concurrently under the admission limit; when a task fails, the
planner is re-invoked with the progress so far and novel tasks are merged
into the live plan. The run ends completed, partially completed, or
deadlocked, and is recorded in the project run history.

Examples:
  waggle run "add rate limiting to the API gateway"
  waggle run --watch --max-parallel 8 "migrate the billing tables"
  waggle run --budget 50000 "summarize open incidents"`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runSwarm,
}

func init() {
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "Maximum concurrent tasks (overrides config)")
	runCmd.Flags().IntVar(&runBudget, "budget", 0, "Token budget for the run (overrides config)")
	runCmd.Flags().IntVar(&runMaxPivots, "max-pivots", 0, "Maximum re-plans after failures; -1 disables pivoting")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Default per-task timeout (overrides config)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Show the live watch view while the swarm runs")
	runCmd.Flags().StringVar(&runInjectDir, "inject", "", "Enable task injection from this drop directory")
}

func runSwarm(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	meter := budget.NewMeter(int64(cfg.Swarm.TokenBudget))
	claudeCfg, err := newClaudeConfig(cfg, meter)
	if err != nil {
		return err
	}

	p, err := planner.NewClaudePlanner(claudeCfg)
	if err != nil {
		return fmt.Errorf("create planner: %w", err)
	}
	executor, err := agent.New(claudeCfg)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}

	reg := swarm.NewRegistry()
	err = reg.Register(swarm.Capability{
		Name:           "claude",
		Description:    "general-purpose Claude worker",
		Exec:           executor.Exec,
		DefaultTimeout: cfg.Swarm.DefaultTimeout,
	})
	if err != nil {
		return fmt.Errorf("register capability: %w", err)
	}

	classifier := swarm.NewClassifier(map[swarm.Strategy]string{
		swarm.StrategyLight:    cfg.Models.Light,
		swarm.StrategyStandard: cfg.Models.Standard,
		swarm.StrategyHeavy:    cfg.Models.Heavy,
	})

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	logger := swarm.NewDebugLoggerForDir(cwd)
	defer logger.Close()

	coord := swarm.New(p, reg, swarm.Config{
		MaxParallel:    cfg.Swarm.MaxParallel,
		PollInterval:   cfg.Swarm.PollInterval,
		DefaultTimeout: cfg.Swarm.DefaultTimeout,
		MaxPivots:      cfg.Swarm.MaxPivots,
	},
		swarm.WithMeter(meter),
		swarm.WithClassifier(classifier),
		swarm.WithLogger(logger),
	)

	if cfg.Inject.Enabled || runInjectDir != "" {
		dir := runInjectDir
		if dir == "" {
			dir = cfg.Inject.Dir
		}
		if dir == "" {
			dir = inject.DirFor(cwd)
		}
		watcher, err := inject.New(dir, coord, logger.Log)
		if err != nil {
			return fmt.Errorf("start inject watcher: %w", err)
		}
		watcher.Start()
		defer watcher.Close()
		fmt.Printf("accepting injected tasks from %s\n", dir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	runID := uuid.New().String()[:8]

	var outcome *swarm.Outcome
	var runErr error
	if runWatch {
		done := make(chan struct{})
		go func() {
			outcome, runErr = coord.Run(ctx, request)
			close(done)
		}()
		if err := tui.Run(coord.Board(), coord.Events(), cfg.TUI.RefreshRate); err != nil {
			fmt.Fprintf(os.Stderr, "watch view error: %v\n", err)
		}
		stop() // a closed watch view cancels the run
		<-done
	} else {
		go printEvents(coord.Events())
		outcome, runErr = coord.Run(ctx, request)
	}

	if outcome == nil {
		return runErr
	}

	printSummary(runID, outcome)
	saveRun(cwd, runID, request, started, coord, outcome)

	if outcome.Status != swarm.OutcomeCompleted {
		return fmt.Errorf("run finished %s", outcome.Status)
	}
	return nil
}

// applyRunFlags folds explicit command-line overrides into the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("max-parallel") {
		cfg.Swarm.MaxParallel = runMaxParallel
	}
	if cmd.Flags().Changed("budget") {
		cfg.Swarm.TokenBudget = runBudget
	}
	if cmd.Flags().Changed("max-pivots") {
		cfg.Swarm.MaxPivots = runMaxPivots
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Swarm.DefaultTimeout = runTimeout
	}
	if cmd.Flags().Changed("inject") {
		cfg.Inject.Enabled = true
	}
}

// printEvents streams coordinator events to stdout in headless mode. It
// returns once the run is done so the channel never backs up.
func printEvents(events <-chan swarm.Event) {
	for ev := range events {
		switch ev.Type {
		case swarm.EventDecomposed:
			fmt.Println(ev.Message)
		case swarm.EventTaskStarted:
			color.Cyan("▸ %s %s", ev.TaskID, ev.Description)
		case swarm.EventTaskCompleted:
			color.Green("✓ %s", ev.TaskID)
		case swarm.EventTaskFailed:
			color.Red("✗ %s: %s", ev.TaskID, ev.Message)
		case swarm.EventPivotStarted:
			color.Yellow("pivoting after %s", ev.TaskID)
		case swarm.EventPivotMerged:
			color.Yellow("pivot merged %s", ev.Message)
		case swarm.EventTaskInjected:
			color.Yellow("%s", ev.Message)
		case swarm.EventUnresolvable:
			color.Yellow("warning: %s", ev.Message)
		case swarm.EventDeadlock:
			color.Red("deadlock: %s", ev.Message)
		case swarm.EventSwarmDone:
			return
		}
	}
}

// printSummary renders the run outcome.
func printSummary(runID string, outcome *swarm.Outcome) {
	fmt.Println()
	switch outcome.Status {
	case swarm.OutcomeCompleted:
		color.Green("run %s completed", runID)
	case swarm.OutcomeDeadlocked:
		color.Red("run %s deadlocked", runID)
	default:
		color.Yellow("run %s partially completed", runID)
	}

	fmt.Printf("  succeeded %d, failed %d, unmet %d, pivots %d\n",
		len(outcome.Succeeded), len(outcome.Failed), len(outcome.Unmet), outcome.Pivots)
	fmt.Printf("  %d tokens in %s\n",
		outcome.Usage.TotalTokens(), outcome.WallClock.Round(time.Millisecond))
	if len(outcome.Unmet) > 0 {
		fmt.Printf("  unmet tasks: %s\n", strings.Join(outcome.Unmet, ", "))
	}
}

// saveRun records the finished run in the project history database. Failures
// here are warnings; the run itself already finished.
func saveRun(projectRoot, runID, request string, started time.Time, coord *swarm.Coordinator, outcome *swarm.Outcome) {
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

	finished := started.Add(outcome.WallClock)
	rec := &state.RunRecord{
		ID:         runID,
		Request:    request,
		Status:     string(outcome.Status),
		Pivots:     outcome.Pivots,
		Usage:      outcome.Usage,
		WallClock:  outcome.WallClock,
		StartedAt:  started,
		FinishedAt: &finished,
	}
	for _, r := range coord.Board().Snapshot() {
		rec.Tasks = append(rec.Tasks, state.TaskRecord{
			TaskID:     r.ID,
			Name:       r.Description,
			Capability: r.Agent,
			Status:     r.Status,
			Error:      r.Error,
		})
	}
	for _, o := range coord.Board().Observations() {
		rec.Observations = append(rec.Observations, state.ObservationRecord{
			Author:    o.Agent,
			Note:      o.Note,
			CreatedAt: o.At,
		})
	}

	if err := db.SaveRun(rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: save run: %v\n", err)
	}
}
