package kaya

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invokeTask(t *testing.T, c *Coordinator, input string) *ToolResult {
	t.Helper()
	ctx := WithConversationID(context.Background(), "ctx_parent")
	res, err := NewDelegateHandle(c).Invoke(ctx, json.RawMessage(input))
	require.NoError(t, err)
	return res
}

func TestDelegateHandle_Describe(t *testing.T) {
	h := NewDelegateHandle(newTestCoordinator(t, echoRunner()))
	assert.Contains(t, h.Description(), "- x: only A")
	assert.Contains(t, h.Description(), "- y: everything")

	props, ok := h.Schema().Properties.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "subagent_type")
	assert.Contains(t, props, "tasks")
}

func TestDelegateHandle_Single(t *testing.T) {
	var parent string
	c := newTestCoordinator(t, RunnerFunc(func(_ context.Context, run Run) RunOutput {
		parent = run.Conversation.ParentID
		return RunOutput{Text: "child output"}
	}))

	res := invokeTask(t, c, `{"subagent_type":"x","description":"look","prompt":"look around"}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "child output", res.Text())
	assert.Equal(t, "ctx_parent", parent)
}

func TestDelegateHandle_MissingFields(t *testing.T) {
	c := newTestCoordinator(t, echoRunner())
	assert.True(t, invokeTask(t, c, `{"subagent_type":"x"}`).IsError)
	assert.True(t, invokeTask(t, c, `{"prompt":"x"}`).IsError)
	assert.True(t, invokeTask(t, c, `not json`).IsError)
}

func TestDelegateHandle_FailureIsToolError(t *testing.T) {
	c := newTestCoordinator(t, RunnerFunc(func(context.Context, Run) RunOutput {
		return RunOutput{Err: errors.New("model refused")}
	}))

	res := invokeTask(t, c, `{"subagent_type":"x","prompt":"go"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "delegation to x failed")
	assert.Contains(t, res.Text(), "model refused")

	res = invokeTask(t, c, `{"subagent_type":"ghost","prompt":"go"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "ghost")
}

func TestDelegateHandle_Batch(t *testing.T) {
	c := newTestCoordinator(t, echoRunner())

	res := invokeTask(t, c, `{"tasks":[
		{"subagent_type":"x","prompt":"first"},
		{"subagent_type":"ghost","prompt":"second"},
		{"subagent_type":"y","prompt":"third"}
	]}`)

	assert.False(t, res.IsError, "a partly failed batch is not an error")
	text := res.Text()
	assert.Contains(t, text, "## Task 1: x (completed)\ndone: first")
	assert.Contains(t, text, "## Task 2: ghost (failed)")
	assert.Contains(t, text, "## Task 3: y (completed)\ndone: third")
	assert.Less(t, strings.Index(text, "Task 1"), strings.Index(text, "Task 2"))
	assert.Less(t, strings.Index(text, "Task 2"), strings.Index(text, "Task 3"))
}

func TestDelegateHandle_BatchAllFailed(t *testing.T) {
	c := newTestCoordinator(t, echoRunner())
	res := invokeTask(t, c, `{"tasks":[{"subagent_type":"ghost","prompt":"a"},{"subagent_type":"phantom","prompt":"b"}]}`)
	assert.True(t, res.IsError)
}

