package kaya

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armatrix/kaya/internal/engine/enginetest"
	"github.com/armatrix/kaya/permission"
)

const runnerModel = anthropic.ModelClaudeOpus4_6

func runnerFixture(t *testing.T, policy CapabilityPolicy) (*Conversation, *CapabilitySet) {
	t.Helper()
	reg := registryWith(t, "A", "B")
	set, err := reg.ListFor(AgentDefinition{Name: "x", Capabilities: policy})
	require.NoError(t, err)
	conv := NewConversation("x", runnerModel, "You are X.")
	conv.AppendUser("go")
	return conv, set
}

func TestAnthropicRunner_TextReply(t *testing.T) {
	streamer := enginetest.NewStreamer(enginetest.TextReply(string(runnerModel), "Hello"))
	r := NewAnthropicRunner(WithStreamer(streamer))
	conv, set := runnerFixture(t, InheritAll())
	sink := &eventCollector{}

	out := r.Run(context.Background(), Run{Conversation: conv, Capabilities: set, Sink: sink})

	require.NoError(t, out.Err)
	assert.Equal(t, "Hello", out.Text)
	assert.Equal(t, 1, out.NumTurns)
	assert.Equal(t, int64(10), out.Usage.InputTokens)
	assert.True(t, out.Cost.IsPositive())
	assert.True(t, out.Cost.Equal(r.TotalCost()))
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, "Hello", conv.LastAssistantText())

	require.Len(t, sink.events, 1)
	delta := sink.events[0].(*TextDeltaEvent)
	assert.Equal(t, "Hello", delta.Delta)
	assert.Equal(t, conv.ID, delta.ContextID)
	assert.Equal(t, "x", delta.Agent)

	calls := streamer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "You are X.", calls[0].System[0].Text)
	assert.Len(t, calls[0].Tools, 2)
	assert.Equal(t, int64(defaultMaxTokens), calls[0].MaxTokens)
}

func TestAnthropicRunner_ToolCallsGoThroughCapabilitySet(t *testing.T) {
	streamer := enginetest.NewStreamer(
		enginetest.ToolCall(string(runnerModel), "toolu_a", "A", `{}`),
		enginetest.ToolCall(string(runnerModel), "toolu_b", "B", `{}`),
		enginetest.TextReply(string(runnerModel), "done"),
	)
	r := NewAnthropicRunner(WithStreamer(streamer))
	conv, set := runnerFixture(t, Only("A"))
	sink := &eventCollector{}

	out := r.Run(context.Background(), Run{Conversation: conv, Capabilities: set, Sink: sink})
	require.NoError(t, out.Err)

	var finished []*ToolInvocationEvent
	for _, e := range sink.events {
		if ti, ok := e.(*ToolInvocationEvent); ok && ti.Phase == ToolFinished {
			finished = append(finished, ti)
		}
	}
	require.Len(t, finished, 2)
	assert.Equal(t, "A", finished[0].Name)
	assert.False(t, finished[0].IsError)
	assert.Equal(t, "A ok", finished[0].Output)
	assert.Equal(t, "B", finished[1].Name)
	assert.True(t, finished[1].IsError)
	assert.Contains(t, finished[1].Output, ErrUnresolvableCapability.Error())
}

func TestAnthropicRunner_MaxTurns(t *testing.T) {
	call := enginetest.ToolCall(string(runnerModel), "toolu_a", "A", `{}`)
	r := NewAnthropicRunner(WithStreamer(enginetest.NewStreamer(call, call, call)))
	conv, set := runnerFixture(t, InheritAll())

	out := r.Run(context.Background(), Run{Conversation: conv, Capabilities: set, MaxTurns: 1})
	assert.ErrorIs(t, out.Err, ErrMaxTurns)
	assert.Equal(t, 1, out.NumTurns)
}

func TestAnthropicRunner_PerRunBudget(t *testing.T) {
	call := enginetest.ToolCall(string(runnerModel), "toolu_a", "A", `{}`)
	r := NewAnthropicRunner(WithStreamer(enginetest.NewStreamer(call, call)))
	conv, set := runnerFixture(t, InheritAll())

	out := r.Run(context.Background(), Run{
		Conversation: conv,
		Capabilities: set,
		MaxBudget:    decimal.NewFromFloat(0.00001),
	})
	assert.ErrorIs(t, out.Err, ErrBudgetExhausted)
}

func TestAnthropicRunner_BudgetStopLeavesConversationUsable(t *testing.T) {
	streamer := enginetest.NewStreamer(
		enginetest.ToolCall(string(runnerModel), "toolu_a", "A", `{}`),
		enginetest.TextReply(string(runnerModel), "next turn"),
	)
	r := NewAnthropicRunner(WithStreamer(streamer))
	conv, set := runnerFixture(t, InheritAll())

	out := r.Run(context.Background(), Run{Conversation: conv, Capabilities: set, MaxBudget: decimal.NewFromFloat(0.00001)})
	require.ErrorIs(t, out.Err, ErrBudgetExhausted)

	last := conv.Messages[len(conv.Messages)-1]
	require.Equal(t, anthropic.MessageParamRoleUser, last.Role)
	require.NotNil(t, last.Content[0].OfToolResult)
	assert.Equal(t, "toolu_a", last.Content[0].OfToolResult.ToolUseID)

	conv.AppendUser("carry on")
	out = r.Run(context.Background(), Run{Conversation: conv, Capabilities: set})
	require.NoError(t, out.Err)
	assert.Equal(t, "next turn", out.Text)

	// The second request must not carry an unanswered tool_use.
	sent := streamer.Calls()[1].Messages
	for i, m := range sent {
		if m.Role != anthropic.MessageParamRoleAssistant {
			continue
		}
		for _, b := range m.Content {
			if b.OfToolUse != nil {
				require.Less(t, i+1, len(sent))
				assert.NotNil(t, sent[i+1].Content[0].OfToolResult)
			}
		}
	}
}

func TestAnthropicRunner_TotalBudgetSpansRuns(t *testing.T) {
	reply := enginetest.TextReply(string(runnerModel), "ok")
	call := enginetest.ToolCall(string(runnerModel), "toolu_a", "A", `{}`)
	r := NewAnthropicRunner(
		WithStreamer(enginetest.NewStreamer(reply, call)),
		WithTotalBudget(decimal.NewFromFloat(0.00001)),
	)

	conv, set := runnerFixture(t, InheritAll())
	first := r.Run(context.Background(), Run{Conversation: conv, Capabilities: set})
	assert.ErrorIs(t, first.Err, ErrBudgetExhausted)

	conv2, _ := runnerFixture(t, InheritAll())
	second := r.Run(context.Background(), Run{Conversation: conv2, Capabilities: set})
	assert.ErrorIs(t, second.Err, ErrBudgetExhausted)
	assert.True(t, r.TotalCost().Equal(first.Cost.Add(second.Cost)))
}

func TestAnthropicRunner_PermissionAsk(t *testing.T) {
	streamer := enginetest.NewStreamer(
		enginetest.ToolCall(string(runnerModel), "toolu_a", "A", `{}`),
		enginetest.TextReply(string(runnerModel), "done"),
	)
	var asked []string
	r := NewAnthropicRunner(
		WithStreamer(streamer),
		WithPermission(permission.NewChecker(permission.ModeDefault, nil),
			func(_ context.Context, name string, _ json.RawMessage) bool {
				asked = append(asked, name)
				return false
			}),
	)
	conv, set := runnerFixture(t, InheritAll())
	sink := &eventCollector{}

	out := r.Run(context.Background(), Run{Conversation: conv, Capabilities: set, Sink: sink})
	require.NoError(t, out.Err)
	assert.Equal(t, []string{"A"}, asked)

	var denied bool
	for _, e := range sink.events {
		if ti, ok := e.(*ToolInvocationEvent); ok && ti.Phase == ToolFinished {
			denied = ti.IsError
		}
	}
	assert.True(t, denied)
}

func TestAnthropicRunner_CancelledContext(t *testing.T) {
	r := NewAnthropicRunner(WithStreamer(enginetest.NewStreamer()))
	conv, set := runnerFixture(t, InheritAll())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := r.Run(ctx, Run{Conversation: conv, Capabilities: set})
	assert.ErrorIs(t, out.Err, context.Canceled)
}
