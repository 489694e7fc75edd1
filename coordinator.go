package kaya

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Coordinator dispatches delegation tasks to isolated sub-agent
// conversations and merges their outcomes into Results.
type Coordinator struct {
	roster   *Roster
	registry *Registry
	runner   Runner
	views    map[string]*CapabilitySet
	opts     coordinatorOptions

	mu     sync.Mutex
	active map[string]*activeTask
}

type activeTask struct {
	task   *DelegationTask
	cancel context.CancelFunc
}

// NewCoordinator seals registry and computes every agent's capability view.
// A definition naming a capability that is not registered fails here, before
// any user interaction.
func NewCoordinator(roster *Roster, registry *Registry, runner Runner, opts ...CoordinatorOption) (*Coordinator, error) {
	if roster == nil || registry == nil || runner == nil {
		return nil, fmt.Errorf("%w: coordinator needs a roster, a registry and a runner", ErrInvalidDefinition)
	}
	o := coordinatorOptions{
		logger:       slog.New(slog.DiscardHandler),
		tracer:       otel.Tracer(tracerName),
		defaultModel: DefaultModel,
	}
	for _, fn := range opts {
		fn(&o)
	}

	registry.Seal()
	views := make(map[string]*CapabilitySet, roster.Len())
	for _, def := range roster.Definitions() {
		set, err := registry.ListFor(def)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", def.Name, err)
		}
		views[def.Name] = set
	}

	return &Coordinator{
		roster:   roster,
		registry: registry,
		runner:   runner,
		views:    views,
		opts:     o,
		active:   make(map[string]*activeTask),
	}, nil
}

// Roster returns the agent definitions the coordinator dispatches to.
func (c *Coordinator) Roster() *Roster { return c.roster }

// Registry returns the sealed capability registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Runner returns the runner used for sub-agent conversations.
func (c *Coordinator) Runner() Runner { return c.runner }

// View returns the capability set computed for agent.
func (c *Coordinator) View(agent string) (*CapabilitySet, bool) {
	set, ok := c.views[agent]
	return set, ok
}

// Dispatch runs task in a fresh conversation seeded only with the target
// agent's system prompt and the task instructions. It blocks until the task
// completes, fails, times out or is cancelled. Failures are reported in the
// Result, never as a panic or an aborted session.
func (c *Coordinator) Dispatch(ctx context.Context, task *DelegationTask) *Result {
	sink := ContextEventSink(ctx)
	if task.ID == "" {
		task.ID = GenerateID(PrefixTask)
	}
	def, ok := c.roster.Get(task.TargetAgent)
	if !ok {
		task.transition(TaskFailed)
		res := failedResult(task, TaskFailed, "", fmt.Errorf("%w: %s", ErrUnknownAgent, task.TargetAgent))
		c.report(sink, Origin{ContextID: task.ParentContextID, Agent: task.TargetAgent}, res)
		return res
	}
	if !task.transition(TaskDispatched) {
		return failedResult(task, TaskFailed, fmt.Sprintf("task is %s, not created", task.State()), nil)
	}

	model := ResolveModel(def.Model, c.opts.defaultModel)
	conv := newChildConversation(task.ParentContextID, def, model, task.Instructions)
	origin := Origin{ContextID: conv.ID, Agent: def.Name}

	ctx, span := c.opts.tracer.Start(ctx, "coordinator.dispatch",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.String("agent.name", def.Name),
			attribute.String("agent.model", string(model)),
		))
	defer span.End()

	runCtx, cancel := c.runContext(ctx, task)
	defer cancel()
	c.track(task, cancel)
	defer c.untrack(task.ID)

	c.opts.logger.Info("delegation dispatched", "task_id", task.ID, "agent", def.Name, "context_id", conv.ID)
	sink.Emit(&StatusEvent{Origin: origin, TaskID: task.ID, State: TaskDispatched,
		Message: fmt.Sprintf("delegating to %s", def.Name)})

	done := make(chan RunOutput, 1)
	go func() {
		done <- c.runner.Run(WithConversationID(runCtx, conv.ID), Run{
			Conversation: conv,
			Capabilities: c.views[def.Name],
			MaxTurns:     childMaxTurns(def),
			MaxBudget:    def.MaxBudget,
			Sink:         sink,
		})
	}()

	var res *Result
	select {
	case out := <-done:
		res = c.settle(ctx, runCtx, task, conv, out)
	case <-task.cancelled():
		res = failedResult(task, TaskCancelled, "cancelled", ErrTaskCancelled)
	case <-runCtx.Done():
		res = c.interrupted(ctx, task)
	}

	if res.State == TaskCompleted {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, res.Reason())
	}
	span.SetAttributes(attribute.String("task.state", res.State.String()))
	c.report(sink, origin, res)
	c.save(ctx, res)
	return res
}

// DispatchMany runs tasks concurrently. Result i always belongs to task i,
// whatever order the tasks finish in.
func (c *Coordinator) DispatchMany(ctx context.Context, tasks []*DelegationTask) []*Result {
	results := make([]*Result, len(tasks))
	var g errgroup.Group
	if c.opts.maxParallel > 0 {
		g.SetLimit(c.opts.maxParallel)
	}
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = c.Dispatch(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Cancel moves a dispatched task to Cancelled and abandons its pending
// result. It reports whether the task was outstanding.
func (c *Coordinator) Cancel(taskID string) bool {
	c.mu.Lock()
	at, ok := c.active[taskID]
	c.mu.Unlock()
	if !ok || !at.task.transition(TaskCancelled) {
		return false
	}
	at.cancel()
	c.opts.logger.Info("delegation cancelled", "task_id", taskID, "agent", at.task.TargetAgent)
	return true
}

// CancelAll cancels every outstanding task and returns how many it cancelled.
func (c *Coordinator) CancelAll() int {
	n := 0
	for _, t := range c.Outstanding() {
		if c.Cancel(t.ID) {
			n++
		}
	}
	return n
}

// Outstanding returns the tasks currently in the Dispatched state.
func (c *Coordinator) Outstanding() []*DelegationTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*DelegationTask
	for _, at := range c.active {
		if at.task.State() == TaskDispatched {
			out = append(out, at.task)
		}
	}
	return out
}

// runContext derives the context a task runs under, applying its timeout.
func (c *Coordinator) runContext(ctx context.Context, task *DelegationTask) (context.Context, context.CancelFunc) {
	timeout := task.Timeout
	if timeout == 0 {
		timeout = c.opts.defaultTimeout
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// settle turns a finished run into a Result.
func (c *Coordinator) settle(ctx, runCtx context.Context, task *DelegationTask, conv *Conversation, out RunOutput) *Result {
	if runCtx.Err() != nil {
		// Output produced after cancellation or timeout is abandoned.
		return c.interrupted(ctx, task)
	}
	if out.Err != nil {
		if !task.transition(TaskFailed) {
			return failedResult(task, TaskCancelled, "cancelled", ErrTaskCancelled)
		}
		res := failedResult(task, TaskFailed, "", out.Err)
		res.Conversation, res.Usage, res.Cost, res.NumTurns = conv, out.Usage, out.Cost, out.NumTurns
		return res
	}
	if !task.transition(TaskCompleted) {
		// Cancelled while the result was in flight; the result is abandoned.
		return failedResult(task, TaskCancelled, "cancelled", ErrTaskCancelled)
	}
	return &Result{
		TaskID:       task.ID,
		Agent:        task.TargetAgent,
		State:        TaskCompleted,
		Output:       out.Text,
		Conversation: conv,
		Usage:        out.Usage,
		Cost:         out.Cost,
		NumTurns:     out.NumTurns,
	}
}

// interrupted classifies a run whose context ended before it did. Caller
// cancellation cancels the task; an expired task timeout fails it.
func (c *Coordinator) interrupted(ctx context.Context, task *DelegationTask) *Result {
	if ctx.Err() != nil {
		if task.transition(TaskCancelled) || task.State() == TaskCancelled {
			return failedResult(task, TaskCancelled, "cancelled", errors.Join(ErrTaskCancelled, ctx.Err()))
		}
	}
	if task.transition(TaskFailed) {
		return failedResult(task, TaskFailed, "timed out", context.DeadlineExceeded)
	}
	return failedResult(task, task.State(), "cancelled", ErrTaskCancelled)
}

func (c *Coordinator) report(sink EventSink, origin Origin, res *Result) {
	var msg string
	switch res.State {
	case TaskCompleted:
		msg = fmt.Sprintf("%s finished", res.Agent)
		c.opts.logger.Info("delegation completed", "task_id", res.TaskID, "agent", res.Agent, "turns", res.NumTurns)
	case TaskCancelled:
		msg = fmt.Sprintf("%s cancelled", res.Agent)
	default:
		msg = fmt.Sprintf("delegation to %s failed: %s", res.Agent, res.Reason())
		c.opts.logger.Warn("delegation failed", "task_id", res.TaskID, "agent", res.Agent, "reason", res.Reason())
	}
	sink.Emit(&CompletionEvent{
		Origin:   origin,
		Text:     res.Output,
		NumTurns: res.NumTurns,
		Usage:    res.Usage,
		Cost:     res.Cost,
		IsError:  res.State != TaskCompleted,
		Errors:   errorList(res.Err),
	})
	sink.Emit(&StatusEvent{Origin: origin, TaskID: res.TaskID, State: res.State, Message: msg})
}

func (c *Coordinator) save(ctx context.Context, res *Result) {
	if c.opts.store == nil || res.Conversation == nil {
		return
	}
	if err := c.opts.store.Save(context.WithoutCancel(ctx), res.Conversation); err != nil {
		c.opts.logger.Warn("saving child conversation", "context_id", res.Conversation.ID, "error", err)
	}
}

func (c *Coordinator) track(task *DelegationTask, cancel context.CancelFunc) {
	c.mu.Lock()
	c.active[task.ID] = &activeTask{task: task, cancel: cancel}
	c.mu.Unlock()
}

func (c *Coordinator) untrack(id string) {
	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()
}

func childMaxTurns(def AgentDefinition) int {
	if def.MaxTurns > 0 {
		return def.MaxTurns
	}
	return defaultChildMaxTurns
}

func errorList(err error) []string {
	if err == nil {
		return nil
	}
	return []string{err.Error()}
}
