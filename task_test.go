package kaya

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskTransitions(t *testing.T) {
	task := NewTask("developer", "build it", "ctx_parent")
	assert.Equal(t, TaskCreated, task.State())
	assert.Contains(t, task.ID, PrefixTask+"_")

	assert.False(t, task.transition(TaskCancelled), "cancel is only reachable from dispatched")
	assert.False(t, task.transition(TaskCompleted))
	assert.True(t, task.transition(TaskDispatched))
	assert.True(t, task.transition(TaskCompleted))

	// terminal states are absorbing
	assert.False(t, task.transition(TaskCancelled))
	assert.False(t, task.transition(TaskFailed))
	assert.Equal(t, TaskCompleted, task.State())
}

func TestTaskCreatedCanFail(t *testing.T) {
	task := NewTask("nobody", "x", "")
	assert.True(t, task.transition(TaskFailed))
	assert.True(t, task.State().Terminal())
}

func TestTaskCancelClosesChannel(t *testing.T) {
	task := NewTask("developer", "x", "")
	task.transition(TaskDispatched)

	select {
	case <-task.cancelled():
		t.Fatal("channel closed before cancellation")
	default:
	}

	assert.True(t, task.transition(TaskCancelled))
	select {
	case <-task.cancelled():
	default:
		t.Fatal("channel not closed after cancellation")
	}
	assert.Greater(t, task.Duration().Nanoseconds(), int64(-1))
}

func TestTaskStateString(t *testing.T) {
	assert.Equal(t, "dispatched", TaskDispatched.String())
	assert.Equal(t, "cancelled", TaskCancelled.String())
	assert.Equal(t, "state(42)", TaskState(42).String())
}

func TestDelegationErrorMatching(t *testing.T) {
	task := NewTask("nobody", "x", "")
	res := failedResult(task, TaskFailed, "", ErrUnknownAgent)

	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, ErrDelegationFailed))
	assert.True(t, errors.Is(res.Err, ErrUnknownAgent))
	assert.Equal(t, ErrUnknownAgent.Error(), res.Reason())
	assert.Contains(t, res.Err.Error(), "nobody")
}
