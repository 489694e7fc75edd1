package kaya

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/shopspring/decimal"

	"github.com/armatrix/kaya/internal/budget"
	"github.com/armatrix/kaya/internal/engine"
	"github.com/armatrix/kaya/permission"
)

// Run is one turn of one conversation. The runner appends the model's
// messages to Conversation and may only execute capabilities through
// Capabilities.
type Run struct {
	Conversation *Conversation
	Capabilities *CapabilitySet
	MaxTurns     int
	MaxBudget    decimal.Decimal

	// Sink receives text deltas and tool invocation events.
	Sink EventSink
}

// RunOutput is what a runner reports when a turn ends.
type RunOutput struct {
	Text     string
	NumTurns int
	Usage    Usage
	Cost     decimal.Decimal
	Err      error
}

// Runner drives a conversation against a model backend. Tests substitute a
// RunnerFunc to avoid real API calls.
type Runner interface {
	Run(ctx context.Context, run Run) RunOutput
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, run Run) RunOutput

func (f RunnerFunc) Run(ctx context.Context, run Run) RunOutput { return f(ctx, run) }

// AnthropicRunner runs conversations against the Anthropic Messages API.
type AnthropicRunner struct {
	streamer      engine.MessageStreamer
	maxTokens     int
	fallbackModel anthropic.Model
	checker       *permission.Checker
	approver      engine.Approver
	pricing       map[anthropic.Model]budget.ModelPricing
	maxBudget     decimal.Decimal
	spend         *budget.Tracker
	logger        *slog.Logger
}

// RunnerOption configures an AnthropicRunner.
type RunnerOption func(*AnthropicRunner)

// WithMaxTokens sets the per-response output token limit.
func WithMaxTokens(n int) RunnerOption {
	return func(r *AnthropicRunner) { r.maxTokens = n }
}

// WithFallbackModel sets the model used when the primary one is overloaded.
func WithFallbackModel(m anthropic.Model) RunnerOption {
	return func(r *AnthropicRunner) { r.fallbackModel = m }
}

// WithPermission applies checker to every capability call. Decisions that
// need a human go to approve; without one they are denied.
func WithPermission(checker *permission.Checker, approve func(ctx context.Context, toolName string, input json.RawMessage) bool) RunnerOption {
	return func(r *AnthropicRunner) {
		r.checker = checker
		r.approver = approve
	}
}

// WithTotalBudget caps the combined spend of every run, root and delegated,
// in USD. Zero means unlimited.
func WithTotalBudget(max decimal.Decimal) RunnerOption {
	return func(r *AnthropicRunner) { r.maxBudget = max }
}

// WithStreamer replaces the API client, mainly for tests.
func WithStreamer(s engine.MessageStreamer) RunnerOption {
	return func(r *AnthropicRunner) { r.streamer = s }
}

// WithRequestOptions passes options such as an API key to the Anthropic client.
func WithRequestOptions(opts ...option.RequestOption) RunnerOption {
	return func(r *AnthropicRunner) {
		client := anthropic.NewClient(opts...)
		r.streamer = engine.NewMessageStreamer(&client.Messages)
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *AnthropicRunner) { r.logger = l }
}

// NewAnthropicRunner creates a runner. Without WithRequestOptions or
// WithStreamer the client reads ANTHROPIC_API_KEY from the environment.
func NewAnthropicRunner(opts ...RunnerOption) *AnthropicRunner {
	r := &AnthropicRunner{
		maxTokens: defaultMaxTokens,
		pricing:   budget.DefaultPricing,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, fn := range opts {
		fn(r)
	}
	if r.streamer == nil {
		client := anthropic.NewClient()
		r.streamer = engine.NewMessageStreamer(&client.Messages)
	}
	r.spend = budget.NewTracker(r.maxBudget, r.pricing)
	return r
}

// TotalCost returns the spend of every run so far, root and delegated.
func (r *AnthropicRunner) TotalCost() decimal.Decimal {
	return r.spend.TotalCost()
}

// Run implements Runner.
func (r *AnthropicRunner) Run(ctx context.Context, run Run) RunOutput {
	conv := run.Conversation
	sink := run.Sink
	if sink == nil {
		sink = discardSink{}
	}

	tracker := r.spend.Child(run.MaxBudget)
	cfg := engine.LoopConfig{
		Streamer:      r.streamer,
		Tools:         &capabilityExecutor{set: run.Capabilities},
		Model:         conv.Model,
		MaxTokens:     r.maxTokens,
		MaxTurns:      run.MaxTurns,
		FallbackModel: r.fallbackModel,
		Messages:      &conv.Messages,
		Sink:          &engineSink{sink: sink, origin: Origin{ContextID: conv.ID, Agent: conv.Agent}},
		Budget:        &budgetAdapter{tracker: tracker},
		Approver:      r.approver,
	}
	if conv.SystemPrompt != "" {
		cfg.SystemPrompt = []anthropic.TextBlockParam{{Text: conv.SystemPrompt}}
	}
	if r.checker != nil {
		cfg.Permission = &permissionAdapter{checker: r.checker}
	}

	r.logger.Debug("run started", "context_id", conv.ID, "agent", conv.Agent, "model", conv.Model)
	info := engine.RunLoop(ctx, cfg)
	conv.UpdatedAt = time.Now()

	out := RunOutput{
		Text:     info.Text,
		NumTurns: info.NumTurns,
		Usage: Usage{
			InputTokens:              info.InputTokens,
			OutputTokens:             info.OutputTokens,
			CacheReadInputTokens:     info.CacheReadInputTokens,
			CacheCreationInputTokens: info.CacheCreationInputTokens,
		},
		Cost: tracker.TotalCost(),
	}
	if info.IsError {
		out.Err = resultError(ctx, info)
	}
	r.logger.Debug("run finished", "context_id", conv.ID, "subtype", info.Subtype, "turns", info.NumTurns)
	return out
}

func resultError(ctx context.Context, info engine.ResultInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	detail := strings.Join(info.Errors, "; ")
	switch info.Subtype {
	case "error_max_turns":
		return fmt.Errorf("%w: %s", ErrMaxTurns, detail)
	case "error_max_budget_usd":
		return fmt.Errorf("%w: %s", ErrBudgetExhausted, detail)
	default:
		return errors.New(detail)
	}
}

// capabilityExecutor adapts a CapabilitySet to engine.ToolExecutor.
type capabilityExecutor struct {
	set *CapabilitySet
}

func (c *capabilityExecutor) Execute(ctx context.Context, name string, input json.RawMessage) (string, bool, error) {
	result, err := c.set.Invoke(ctx, name, input)
	if err != nil {
		return "", false, err
	}
	return result.Text(), result.IsError, nil
}

func (c *capabilityExecutor) ListForAPI() []anthropic.ToolUnionParam {
	return c.set.ListForAPI()
}

// engineSink converts engine callbacks into tagged events.
type engineSink struct {
	sink   EventSink
	origin Origin
}

func (s *engineSink) OnStream(delta string) {
	s.sink.Emit(&TextDeltaEvent{Origin: s.origin, Delta: delta})
}

func (s *engineSink) OnToolStart(id, name string, input json.RawMessage) {
	s.sink.Emit(&ToolInvocationEvent{Origin: s.origin, Phase: ToolStarted, ToolUseID: id, Name: name, Input: input})
}

func (s *engineSink) OnToolEnd(id, name, output string, isError bool) {
	s.sink.Emit(&ToolInvocationEvent{Origin: s.origin, Phase: ToolFinished, ToolUseID: id, Name: name, Output: output, IsError: isError})
}

type budgetAdapter struct {
	tracker *budget.Tracker
}

func (b *budgetAdapter) RecordUsage(model anthropic.Model, usage engine.BudgetUsage) {
	b.tracker.RecordUsage(model, budget.Usage{
		InputTokens:              usage.InputTokens,
		OutputTokens:             usage.OutputTokens,
		CacheReadInputTokens:     usage.CacheRead,
		CacheCreationInputTokens: usage.CacheCreation,
	})
}

func (b *budgetAdapter) Exhausted() bool {
	return b.tracker.Exhausted()
}

type permissionAdapter struct {
	checker *permission.Checker
}

func (p *permissionAdapter) Check(ctx context.Context, toolName string, input json.RawMessage) (int, error) {
	decision, err := p.checker.Check(ctx, toolName, input)
	if err != nil {
		return 0, err
	}
	return int(decision), nil
}
