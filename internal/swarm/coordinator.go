package swarm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trellison/waggle/internal/board"
	"github.com/trellison/waggle/internal/budget"
	"github.com/trellison/waggle/internal/dispatch"
	"github.com/trellison/waggle/internal/plan"
	"github.com/trellison/waggle/internal/planner"
	"github.com/trellison/waggle/internal/runner"
	"github.com/trellison/waggle/pkg/models"
)

// OutcomeStatus is the terminal state of a swarm run.
type OutcomeStatus string

const (
	// OutcomeCompleted means every task completed.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomePartiallyCompleted means the loop exited with failed tasks
	// still recorded.
	OutcomePartiallyCompleted OutcomeStatus = "partially_completed"
	// OutcomeDeadlocked means pending tasks remained whose dependencies
	// could never be satisfied.
	OutcomeDeadlocked OutcomeStatus = "deadlocked"
)

// Outcome is the structured result of a swarm run. Nothing fails silently:
// every task the run ever knew about lands in exactly one of the lists.
type Outcome struct {
	// Status is the terminal state of the run.
	Status OutcomeStatus `json:"status"`
	// Succeeded lists completed task IDs.
	Succeeded []string `json:"succeeded"`
	// Failed lists failed task IDs.
	Failed []string `json:"failed"`
	// Unmet lists pending task IDs whose dependencies were never
	// satisfied when the loop exited.
	Unmet []string `json:"unmet"`
	// Pivots counts how many re-decompositions ran.
	Pivots int `json:"pivots"`
	// Usage accumulates resource counters across all attempts.
	Usage models.Usage `json:"usage"`
	// WallClock is the total elapsed run time.
	WallClock time.Duration `json:"wall_clock"`
}

// Config holds coordinator tuning knobs.
type Config struct {
	// MaxParallel bounds concurrent task bodies.
	MaxParallel int
	// PollInterval is the fallback tick while waiting for blackboard
	// changes. Mutations also signal the loop directly, so this only
	// bounds worst-case latency.
	PollInterval time.Duration
	// DefaultTimeout applies to tasks with no timeout of their own and
	// no capability default.
	DefaultTimeout time.Duration
	// MaxPivots bounds failure-triggered re-decompositions per run.
	// Zero selects the default; negative disables pivoting.
	MaxPivots int
}

// DefaultMaxPivots bounds re-decompositions when the config leaves
// MaxPivots unset.
const DefaultMaxPivots = 3

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxPivots == 0 {
		c.MaxPivots = DefaultMaxPivots
	}
	if c.MaxPivots < 0 {
		c.MaxPivots = 0
	}
	return c
}

// Coordinator runs the swarm loop: decompose, register on the blackboard,
// execute with maximal safe parallelism, pivot on failure, and terminate
// with a structured outcome. All dependencies are explicit; nothing hangs
// off process-global state, so concurrent coordinators never couple.
type Coordinator struct {
	planner    planner.Planner
	registry   *Registry
	board      *board.Board
	dispatcher *dispatch.Dispatcher
	classifier *Classifier
	emitter    *EventEmitter
	logger     *DebugLogger
	meter      *budget.Meter
	cfg        Config

	// tasks is the live plan, owned by the Run loop. results is written
	// by task goroutines while they still hold their admission slot, so
	// it carries its own lock.
	tasks     map[string]*models.Task
	resultsMu sync.Mutex
	results   map[string]*models.TaskResult

	injectCh chan []planner.TaskSpec
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBoard sets the blackboard. A fresh one is created otherwise.
func WithBoard(b *board.Board) Option {
	return func(c *Coordinator) { c.board = b }
}

// WithClassifier sets the strategy classifier hook.
func WithClassifier(cl *Classifier) Option {
	return func(c *Coordinator) { c.classifier = cl }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMeter sets the budget meter used as the admission gate.
func WithMeter(m *budget.Meter) Option {
	return func(c *Coordinator) { c.meter = m }
}

// New creates a Coordinator. The planner decides what tasks exist; the
// registry says who can execute them.
func New(p planner.Planner, reg *Registry, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		planner:  p,
		registry: reg,
		cfg:      cfg.withDefaults(),
		emitter:  NewEventEmitter(256),
		logger:   NopLogger(),
		tasks:    make(map[string]*models.Task),
		results:  make(map[string]*models.TaskResult),
		injectCh: make(chan []planner.TaskSpec, 8),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.board == nil {
		c.board = board.New()
	}

	dispatchOpts := []dispatch.Option{dispatch.WithLogFunc(c.logger.Log)}
	if c.meter != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithGate(c.meter))
	}
	c.dispatcher = dispatch.New(c.cfg.MaxParallel, dispatchOpts...)

	c.board.SetLogFunc(c.logger.Log)
	setPackageLogger(c.logger)
	return c
}

// Board returns the coordinator's blackboard for observers.
func (c *Coordinator) Board() *board.Board {
	return c.board
}

// Events returns the subscriber channel for run events.
func (c *Coordinator) Events() <-chan Event {
	return c.emitter.Events()
}

// Inject merges externally produced task specs into a live run. Specs whose
// IDs are already known are dropped, same as a pivot merge.
func (c *Coordinator) Inject(specs []planner.TaskSpec) {
	if len(specs) == 0 {
		return
	}
	select {
	case c.injectCh <- specs:
	default:
		c.logger.Log("[swarm] inject queue full, dropping %d specs", len(specs))
	}
}

// Run executes the swarm loop for the given request. It returns an error
// only for unrecoverable conditions: a failed or empty initial
// decomposition, or context cancellation. Task failures are represented in
// the Outcome, never as errors.
func (c *Coordinator) Run(ctx context.Context, request string) (*Outcome, error) {
	started := time.Now()

	// Decomposing.
	specs, err := c.planner.Decompose(ctx, request, planner.PlanContext{})
	if err != nil {
		return nil, fmt.Errorf("initial decomposition: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("initial decomposition produced no tasks")
	}

	tasks := c.specsToTasks(specs)
	c.registerTasks(tasks)
	c.board.AddObservation("planner", fmt.Sprintf("decomposed request into %d tasks", len(tasks)))
	c.emitter.Emit(Event{
		Type:      EventDecomposed,
		Message:   fmt.Sprintf("plan has %d tasks", len(tasks)),
		Timestamp: time.Now(),
	})
	c.reportUnresolvable()

	// Running / Pivoting.
	outcome := c.runLoop(ctx, request)
	outcome.WallClock = time.Since(started)
	if c.meter != nil {
		outcome.Usage = c.meter.Usage()
	}

	c.emitter.Emit(Event{
		Type:      EventSwarmDone,
		Message:   string(outcome.Status),
		Timestamp: time.Now(),
		Usage:     outcome.Usage,
	})
	return outcome, ctx.Err()
}

// runLoop drives the Running/Pivoting states until terminal.
func (c *Coordinator) runLoop(ctx context.Context, request string) *Outcome {
	completionCh := make(chan *models.TaskResult, c.cfg.MaxParallel*2)
	inflight := make(map[string]bool)
	pivots := 0

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Launch everything ready, highest priority first.
		ready := c.readyTasks(inflight)
		plan.SortByPriority(ready)
		for _, t := range ready {
			inflight[t.ID] = true
			c.emitter.Emit(Event{Type: EventTaskQueued, TaskID: t.ID, Description: t.Name, Timestamp: time.Now()})
			// Arguments are assembled here, not in the goroutine: the
			// loop owns the results map.
			go c.launch(ctx, t, c.buildArgs(t), completionCh)
		}

		if len(inflight) == 0 {
			if done, outcome := c.checkTerminal(pivots); done {
				return outcome
			}
		}

		select {
		case <-ctx.Done():
			return c.outcomeNow(OutcomePartiallyCompleted, pivots)

		case res := <-completionCh:
			delete(inflight, res.TaskID)

			if res.Status == models.TaskStatusFailed {
				c.emitter.Emit(Event{Type: EventTaskFailed, TaskID: res.TaskID, Description: res.Name, Message: res.Error, Timestamp: time.Now()})
				// Pivoting.
				if pivots < c.cfg.MaxPivots {
					pivots++
					c.pivot(ctx, request, res)
				} else {
					c.logger.Log("[swarm] pivot budget exhausted (%d), continuing with remaining tasks", pivots)
				}
			} else {
				c.emitter.Emit(Event{Type: EventTaskCompleted, TaskID: res.TaskID, Description: res.Name, Timestamp: time.Now()})
			}

		case specs := <-c.injectCh:
			merged := c.merge(specs)
			if len(merged) > 0 {
				c.board.AddObservation("injector", fmt.Sprintf("injected %d tasks", len(merged)))
				c.emitter.Emit(Event{Type: EventTaskInjected, Message: fmt.Sprintf("%d tasks injected", len(merged)), Timestamp: time.Now()})
			}

		case <-c.board.Notify():
			// A mutation happened; loop to recompute the ready set.

		case <-ticker.C:
			// Fallback tick so a missed signal can never stall the run.
		}
	}
}

// buildArgs assembles a task's argument map, injecting completed dependency
// outputs under the convention key.
func (c *Coordinator) buildArgs(t *models.Task) map[string]any {
	args := t.CloneArgs()
	if _, ok := args[runner.TaskKey]; !ok && t.Name != "" {
		args[runner.TaskKey] = t.Name
	}
	c.resultsMu.Lock()
	for _, depID := range t.DependsOn {
		if depRes, ok := c.results[depID]; ok && depRes.Succeeded() {
			args[runner.DepKeyPrefix+depID] = depRes.Output
		}
	}
	c.resultsMu.Unlock()
	if t.Model != "" {
		args["model"] = t.Model
	}
	return args
}

// record stores a terminal result and flips the blackboard after it. The
// ordering matters twice over: a dependent that sees the terminal status on
// the board must find the output already recorded, and the flip happens
// before the admission slot is released so Running counts stay within the
// limit.
func (c *Coordinator) record(res *models.TaskResult) {
	c.resultsMu.Lock()
	c.results[res.TaskID] = res
	c.resultsMu.Unlock()

	c.board.UpdateStatus(res.TaskID, res.Status, res.Output, res.Error)
	if c.meter != nil {
		c.meter.Record(res.Usage)
	}
}

// launch executes one task and reports its terminal result on completionCh.
func (c *Coordinator) launch(ctx context.Context, t *models.Task, args map[string]any, completionCh chan<- *models.TaskResult) {
	exec, ok := c.registry.Lookup(t.Capability)
	if !ok {
		res := &models.TaskResult{
			TaskID:  t.ID,
			Name:    t.Name,
			Status:  models.TaskStatusFailed,
			Error:   fmt.Sprintf("no executor registered for capability %q", t.Capability),
			EndedAt: time.Now(),
		}
		c.record(res)
		c.deliver(ctx, res, completionCh)
		return
	}

	onStart := func() {
		c.board.UpdateStatus(t.ID, models.TaskStatusRunning, nil, "")
		c.emitter.Emit(Event{Type: EventTaskStarted, TaskID: t.ID, Description: t.Name, Timestamp: time.Now()})
	}

	res := c.dispatcher.Execute(ctx, t, exec, args, onStart, c.record)
	c.deliver(ctx, res, completionCh)
}

// deliver sends a result without leaking the goroutine after the loop has
// exited on cancellation.
func (c *Coordinator) deliver(ctx context.Context, res *models.TaskResult, completionCh chan<- *models.TaskResult) {
	select {
	case completionCh <- res:
	case <-ctx.Done():
	}
}

// readyTasks returns pending tasks whose dependencies are all completed and
// which are not already in flight.
func (c *Coordinator) readyTasks(inflight map[string]bool) []*models.Task {
	pending, _, completed, _ := c.board.StatusSets()

	var ready []*models.Task
	for id := range pending {
		if inflight[id] {
			continue
		}
		t, ok := c.tasks[id]
		if !ok {
			continue
		}
		depsMet := true
		for _, depID := range t.DependsOn {
			if !completed[depID] {
				depsMet = false
				break
			}
		}
		if depsMet {
			ready = append(ready, t)
		}
	}
	return ready
}

// checkTerminal decides whether the run is over when nothing is in flight.
// Pending tasks with no way to become ready mean deadlock.
func (c *Coordinator) checkTerminal(pivots int) (bool, *Outcome) {
	pending, running, completed, _ := c.board.StatusSets()
	if len(running) > 0 {
		return false, nil
	}

	if len(pending) == 0 {
		out := c.outcomeNow(OutcomeCompleted, pivots)
		if len(out.Failed) > 0 {
			out.Status = OutcomePartiallyCompleted
		}
		return true, out
	}

	// Pending tasks remain. If none of them is ready, their dependencies
	// can never be satisfied: deadlock.
	for id := range pending {
		t, ok := c.tasks[id]
		if !ok {
			continue
		}
		ready := true
		for _, depID := range t.DependsOn {
			if !completed[depID] {
				ready = false
				break
			}
		}
		if ready {
			return false, nil // progress is still possible
		}
	}

	out := c.outcomeNow(OutcomeDeadlocked, pivots)
	c.emitter.Emit(Event{
		Type:      EventDeadlock,
		Message:   fmt.Sprintf("%d tasks unmet: %s", len(out.Unmet), strings.Join(out.Unmet, ", ")),
		Timestamp: time.Now(),
	})
	c.logger.Log("[swarm] deadlock: unmet tasks %v", out.Unmet)
	return true, out
}

// outcomeNow snapshots the blackboard into an Outcome.
func (c *Coordinator) outcomeNow(status OutcomeStatus, pivots int) *Outcome {
	pending, running, completed, failed := c.board.StatusSets()

	out := &Outcome{Status: status, Pivots: pivots}
	out.Succeeded = sortedKeys(completed)
	out.Failed = sortedKeys(failed)
	for id := range running {
		pending[id] = true
	}
	out.Unmet = sortedKeys(pending)
	return out
}

// pivot re-invokes the planner with progress context and merges any novel
// tasks into the live plan. An empty or failed pivot is logged and the run
// continues with whatever remains.
func (c *Coordinator) pivot(ctx context.Context, request string, failed *models.TaskResult) {
	c.emitter.Emit(Event{Type: EventPivotStarted, TaskID: failed.TaskID, Message: failed.Error, Timestamp: time.Now()})
	c.board.AddObservation("coordinator", fmt.Sprintf("pivoting after failure of %s: %s", failed.TaskID, failed.Error))

	specs, err := c.planner.Decompose(ctx, request, c.planContext())
	if err != nil {
		c.logger.Log("[swarm] pivot planner call failed: %v", err)
		c.emitter.Emit(Event{Type: EventPivotEmpty, Message: err.Error(), Timestamp: time.Now()})
		return
	}

	merged := c.merge(specs)
	if len(merged) == 0 {
		c.logger.Log("[swarm] pivot produced no new tasks, continuing with remaining work")
		c.emitter.Emit(Event{Type: EventPivotEmpty, Message: "no new tasks", Timestamp: time.Now()})
		return
	}

	ids := make([]string, len(merged))
	for i, t := range merged {
		ids[i] = t.ID
	}
	c.board.AddObservation("planner", fmt.Sprintf("pivot added %d tasks: %s", len(merged), strings.Join(ids, ", ")))
	c.emitter.Emit(Event{Type: EventPivotMerged, Message: fmt.Sprintf("%d new tasks", len(merged)), Timestamp: time.Now()})
}

// planContext summarizes prior progress for a pivot call.
func (c *Coordinator) planContext() planner.PlanContext {
	pc := planner.PlanContext{}
	c.resultsMu.Lock()
	defer c.resultsMu.Unlock()
	for id, res := range c.results {
		t := c.tasks[id]
		label := id
		if t != nil && t.Name != "" {
			label = fmt.Sprintf("%s: %s", id, t.Name)
		}
		switch {
		case res.Succeeded():
			pc.Completed = append(pc.Completed, label)
		case res.Status == models.TaskStatusFailed:
			pc.Failed = append(pc.Failed, fmt.Sprintf("%s (%s)", label, res.Error))
		}
	}
	sort.Strings(pc.Completed)
	sort.Strings(pc.Failed)
	return pc
}

// merge filters specs down to genuinely new tasks and registers them.
// Anything already completed, failed, or known to the live plan is dropped:
// a pivot must never re-register or mutate prior work.
func (c *Coordinator) merge(specs []planner.TaskSpec) []*models.Task {
	var novel []planner.TaskSpec
	for _, s := range specs {
		if s.ID != "" {
			if _, known := c.tasks[s.ID]; known {
				c.logger.Log("[swarm] merge dropped duplicate task %s", s.ID)
				continue
			}
		}
		novel = append(novel, s)
	}
	if len(novel) == 0 {
		return nil
	}

	tasks := c.specsToTasks(novel)
	c.registerTasks(tasks)
	c.reportUnresolvable()
	return tasks
}

// specsToTasks converts planner descriptors into Task records, minting IDs
// where the planner omitted them and applying the strategy classifier.
func (c *Coordinator) specsToTasks(specs []planner.TaskSpec) []*models.Task {
	now := time.Now()
	tasks := make([]*models.Task, 0, len(specs))
	for _, s := range specs {
		id := s.ID
		if id == "" {
			id = uuid.New().String()[:8]
		}

		timeout := c.cfg.DefaultTimeout
		if capDesc, ok := c.registry.Get(s.Agent); ok && capDesc.DefaultTimeout > 0 {
			timeout = capDesc.DefaultTimeout
		}

		t := &models.Task{
			ID:         id,
			Name:       s.Description,
			Capability: s.Agent,
			DependsOn:  append([]string(nil), s.DependsOn...),
			Priority:   s.Priority,
			Timeout:    timeout,
			CreatedAt:  now,
		}
		if c.classifier != nil {
			t.Model = c.classifier.ModelFor(s.Description)
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// registerTasks adds tasks to the live plan and the blackboard.
func (c *Coordinator) registerTasks(tasks []*models.Task) {
	for _, t := range tasks {
		c.tasks[t.ID] = t
		c.board.Register(t)
	}
}

// reportUnresolvable surfaces cycles and dangling references in the current
// live plan as a diagnosable event. The plan still executes (the resolver's
// forced-batch fallback), but the operator can see why ordering degraded.
func (c *Coordinator) reportUnresolvable() {
	all := make([]*models.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		all = append(all, t)
	}
	p := plan.Resolve(all, nil)
	if len(p.Unresolved) == 0 {
		return
	}
	sort.Strings(p.Unresolved)
	msg := fmt.Sprintf("unresolvable dependencies: %s", strings.Join(p.Unresolved, ", "))
	c.logger.Log("[swarm] %s", msg)
	c.board.AddObservation("coordinator", msg)
	c.emitter.Emit(Event{Type: EventUnresolvable, Message: msg, Timestamp: time.Now()})
}

// sortedKeys returns the map's keys in sorted order.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
