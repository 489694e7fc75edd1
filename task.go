package kaya

import (
	"fmt"
	"sync"
	"time"
)

// TaskState is the lifecycle state of a DelegationTask.
type TaskState int

const (
	TaskCreated TaskState = iota
	TaskDispatched
	TaskCompleted
	TaskFailed
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskDispatched:
		return "dispatched"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// validTransitions lists the allowed moves. Created may fail directly when
// the target agent does not exist.
var validTransitions = map[TaskState][]TaskState{
	TaskCreated:    {TaskDispatched, TaskFailed},
	TaskDispatched: {TaskCompleted, TaskFailed, TaskCancelled},
}

// DelegationTask is one unit of delegated work. It owns the child
// conversation it runs; ParentContextID is only a back-reference.
type DelegationTask struct {
	ID              string
	TargetAgent     string
	Instructions    string
	ParentContextID string

	// Timeout bounds the run. Zero falls back to the coordinator default,
	// which itself defaults to no timeout.
	Timeout time.Duration

	mu        sync.Mutex
	state     TaskState
	createdAt time.Time
	endedAt   time.Time
	cancelCh  chan struct{}
}

// NewTask creates a task in the Created state.
func NewTask(targetAgent, instructions, parentContextID string) *DelegationTask {
	return &DelegationTask{
		ID:              GenerateID(PrefixTask),
		TargetAgent:     targetAgent,
		Instructions:    instructions,
		ParentContextID: parentContextID,
		createdAt:       time.Now(),
		cancelCh:        make(chan struct{}),
	}
}

// State returns the current state.
func (t *DelegationTask) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Duration returns how long the task has run, or ran if it is terminal.
func (t *DelegationTask) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endedAt.IsZero() {
		return time.Since(t.createdAt)
	}
	return t.endedAt.Sub(t.createdAt)
}

// transition moves the task to next if allowed and reports whether it did.
func (t *DelegationTask) transition(next TaskState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, allowed := range validTransitions[t.state] {
		if allowed != next {
			continue
		}
		t.state = next
		if t.createdAt.IsZero() {
			t.createdAt = time.Now()
		}
		if next.Terminal() {
			t.endedAt = time.Now()
		}
		if next == TaskCancelled {
			close(t.cancelChan())
		}
		return true
	}
	return false
}

// cancelled is closed when the task moves to Cancelled.
func (t *DelegationTask) cancelled() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelChan()
}

// cancelChan creates the channel on first use so struct-literal tasks work.
// t.mu must be held.
func (t *DelegationTask) cancelChan() chan struct{} {
	if t.cancelCh == nil {
		t.cancelCh = make(chan struct{})
	}
	return t.cancelCh
}
