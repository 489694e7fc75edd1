package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// MessageStreamer abstracts the Anthropic Messages API so the loop can be tested
// with a mock. Production code passes the real client.Messages.NewStreaming.
type MessageStreamer interface {
	NewStreaming(ctx context.Context, params anthropic.MessageNewParams) *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

type messageServiceAdapter struct {
	svc *anthropic.MessageService
}

func (a *messageServiceAdapter) NewStreaming(ctx context.Context, params anthropic.MessageNewParams) *ssestream.Stream[anthropic.MessageStreamEventUnion] {
	return a.svc.NewStreaming(ctx, params)
}

// NewMessageStreamer wraps a real anthropic.MessageService as a MessageStreamer.
func NewMessageStreamer(svc *anthropic.MessageService) MessageStreamer {
	return &messageServiceAdapter{svc: svc}
}

// ToolExecutor executes a capability by name with raw JSON input. A non-nil
// error means the call never ran (unknown or unresolvable name).
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) (content string, isError bool, err error)
	ListForAPI() []anthropic.ToolUnionParam
}

// EventSink receives progress from the loop. The loop calls these methods
// instead of importing root package event types, breaking the import cycle.
type EventSink interface {
	OnStream(delta string)
	OnToolStart(toolUseID, name string, input json.RawMessage)
	OnToolEnd(toolUseID, name, output string, isError bool)
}

type nopSink struct{}

func (nopSink) OnStream(string)                             {}
func (nopSink) OnToolStart(string, string, json.RawMessage) {}
func (nopSink) OnToolEnd(string, string, string, bool)      {}

// BudgetUsage holds token counts for a single API call.
type BudgetUsage struct {
	InputTokens   int
	OutputTokens  int
	CacheRead     int
	CacheCreation int
}

// BudgetChecker tracks and enforces budget limits. Nil means no budget enforcement.
type BudgetChecker interface {
	RecordUsage(model anthropic.Model, usage BudgetUsage)
	Exhausted() bool
}

// Permission decisions returned by PermissionChecker.Check.
const (
	DecisionAllow = 0
	DecisionDeny  = 1
	DecisionAsk   = 2
)

// PermissionChecker evaluates whether a tool is allowed to execute.
// Nil means all tools are allowed.
type PermissionChecker interface {
	Check(ctx context.Context, toolName string, input json.RawMessage) (int, error)
}

// Approver settles DecisionAsk. A nil Approver denies.
type Approver func(ctx context.Context, toolName string, input json.RawMessage) bool

// PerModelUsage tracks token usage for a single model.
type PerModelUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// ResultInfo summarizes a finished loop.
type ResultInfo struct {
	// Subtype is "success", "error_max_turns", "error_max_budget_usd" or
	// "error_during_execution".
	Subtype                  string
	IsError                  bool
	NumTurns                 int
	DurationMs               int64
	InputTokens              int64
	OutputTokens             int64
	CacheReadInputTokens     int64
	CacheCreationInputTokens int64
	ModelUsage               map[string]PerModelUsage
	Errors                   []string

	// Text is the text of the final assistant message.
	Text string
}

// LoopConfig holds everything the loop needs to execute one conversation turn.
type LoopConfig struct {
	Streamer  MessageStreamer
	Tools     ToolExecutor
	Model     anthropic.Model
	MaxTokens int
	MaxTurns  int

	// FallbackModel is used when the primary model returns overloaded/unavailable.
	// Empty means no fallback; errors propagate immediately.
	FallbackModel anthropic.Model

	// Messages is the mutable message history. The loop appends to it.
	Messages *[]anthropic.MessageParam

	SystemPrompt []anthropic.TextBlockParam
	Sink         EventSink

	Budget     BudgetChecker
	Permission PermissionChecker
	Approver   Approver
}

type tally struct {
	start         time.Time
	turns         int
	input, output int64
	cacheRead     int64
	cacheCreation int64
	perModel      map[string]PerModelUsage
}

func (t *tally) add(model anthropic.Model, u anthropic.Usage) {
	t.input += u.InputTokens
	t.output += u.OutputTokens
	t.cacheRead += u.CacheReadInputTokens
	t.cacheCreation += u.CacheCreationInputTokens
	m := t.perModel[string(model)]
	m.InputTokens += u.InputTokens
	m.OutputTokens += u.OutputTokens
	t.perModel[string(model)] = m
}

func (t *tally) result(subtype, text string, errs ...string) ResultInfo {
	return ResultInfo{
		Subtype:                  subtype,
		IsError:                  subtype != "success",
		NumTurns:                 t.turns,
		DurationMs:               time.Since(t.start).Milliseconds(),
		InputTokens:              t.input,
		OutputTokens:             t.output,
		CacheReadInputTokens:     t.cacheRead,
		CacheCreationInputTokens: t.cacheCreation,
		ModelUsage:               t.perModel,
		Errors:                   errs,
		Text:                     text,
	}
}

// RunLoop drives the conversation in cfg.Messages until the model ends its
// turn, a limit is hit, or ctx is cancelled. It runs in the calling goroutine.
func RunLoop(ctx context.Context, cfg LoopConfig) ResultInfo {
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	t := &tally{start: time.Now(), perModel: make(map[string]PerModelUsage)}

	for {
		if err := ctx.Err(); err != nil {
			return t.result("error_during_execution", "", err.Error())
		}

		params := anthropic.MessageNewParams{
			Model:     cfg.Model,
			MaxTokens: int64(cfg.MaxTokens),
			Messages:  *cfg.Messages,
		}
		if len(cfg.SystemPrompt) > 0 {
			params.System = cfg.SystemPrompt
		}
		if tools := cfg.Tools.ListForAPI(); len(tools) > 0 {
			params.Tools = tools
		}

		msg, err := streamOnce(ctx, cfg, params)
		if err != nil && cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Model && isRetryableError(err) {
			params.Model = cfg.FallbackModel
			msg, err = streamOnce(ctx, cfg, params)
			if err != nil {
				return t.result("error_during_execution", "", fmt.Sprintf("fallback stream error: %s", err.Error()))
			}
		} else if err != nil {
			return t.result("error_during_execution", "", fmt.Sprintf("stream error: %s", err.Error()))
		}

		t.add(params.Model, msg.Usage)
		t.turns++
		*cfg.Messages = append(*cfg.Messages, msg.ToParam())
		text := messageText(msg)

		if cfg.Budget != nil {
			cfg.Budget.RecordUsage(params.Model, BudgetUsage{
				InputTokens:   int(msg.Usage.InputTokens),
				OutputTokens:  int(msg.Usage.OutputTokens),
				CacheRead:     int(msg.Usage.CacheReadInputTokens),
				CacheCreation: int(msg.Usage.CacheCreationInputTokens),
			})
			if cfg.Budget.Exhausted() {
				answerToolUse(cfg.Messages, msg.Content, "budget exhausted")
				return t.result("error_max_budget_usd", text, "budget exhausted")
			}
		}

		switch msg.StopReason {
		case anthropic.StopReasonToolUse:
			results := processToolUse(ctx, cfg, msg.Content)
			*cfg.Messages = append(*cfg.Messages, anthropic.NewUserMessage(results...))
		case anthropic.StopReasonMaxTokens:
			answerToolUse(cfg.Messages, msg.Content, "max_tokens reached")
			return t.result("error_max_turns", text, "max_tokens reached")
		default:
			return t.result("success", text)
		}

		if cfg.MaxTurns > 0 && t.turns >= cfg.MaxTurns {
			return t.result("error_max_turns", text, "max turns reached")
		}
	}
}

// streamOnce performs one streaming API call and accumulates the message.
func streamOnce(ctx context.Context, cfg LoopConfig, params anthropic.MessageNewParams) (anthropic.Message, error) {
	stream := cfg.Streamer.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return msg, fmt.Errorf("accumulate: %w", err)
		}
		if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			cfg.Sink.OnStream(event.Delta.Text)
		}
	}
	return msg, stream.Err()
}

// answerToolUse closes every tool_use block in content with an error result
// so a conversation that stops early can still be continued.
func answerToolUse(messages *[]anthropic.MessageParam, content []anthropic.ContentBlockUnion, reason string) {
	var results []anthropic.ContentBlockParamUnion
	for _, block := range content {
		if block.Type == "tool_use" {
			results = append(results, anthropic.NewToolResultBlock(block.ID, "not run: "+reason, true))
		}
	}
	if len(results) > 0 {
		*messages = append(*messages, anthropic.NewUserMessage(results...))
	}
}

// processToolUse executes each tool_use block after the permission check.
func processToolUse(ctx context.Context, cfg LoopConfig, content []anthropic.ContentBlockUnion) []anthropic.ContentBlockParamUnion {
	var results []anthropic.ContentBlockParamUnion

	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}
		toolUse := block.AsToolUse()
		input := json.RawMessage(toolUse.Input)

		cfg.Sink.OnToolStart(toolUse.ID, toolUse.Name, input)
		text, isError := executeOne(ctx, cfg, toolUse.Name, input)
		cfg.Sink.OnToolEnd(toolUse.ID, toolUse.Name, text, isError)

		results = append(results, anthropic.NewToolResultBlock(toolUse.ID, text, isError))
	}
	return results
}

func executeOne(ctx context.Context, cfg LoopConfig, name string, input json.RawMessage) (string, bool) {
	if cfg.Permission != nil {
		decision, err := cfg.Permission.Check(ctx, name, input)
		if err != nil {
			return fmt.Sprintf("permission error: %s", err.Error()), true
		}
		switch decision {
		case DecisionDeny:
			return "tool execution denied by permission policy", true
		case DecisionAsk:
			if cfg.Approver == nil || !cfg.Approver(ctx, name, input) {
				return "tool execution denied: approval required", true
			}
		}
	}

	text, isError, err := cfg.Tools.Execute(ctx, name, input)
	if err != nil {
		return fmt.Sprintf("error: %s", err.Error()), true
	}
	return text, isError
}

func messageText(msg anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// isRetryableError returns true if the error indicates the model is overloaded
// or unavailable (suitable for fallback retry).
func isRetryableError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "model_unavailable") ||
		strings.Contains(msg, "529") ||
		strings.Contains(msg, "503")
}
