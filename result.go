package kaya

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Result is the merged outcome of one delegation.
type Result struct {
	TaskID string
	Agent  string
	State  TaskState

	// Output is the sub-agent's final text, merged into a single value.
	Output string

	// Conversation is the child's isolated conversation.
	Conversation *Conversation

	Usage    Usage
	Cost     decimal.Decimal
	NumTurns int

	// Err is a *DelegationError when State is Failed or Cancelled.
	Err error
}

// OK reports whether the delegation completed.
func (r *Result) OK() bool { return r != nil && r.State == TaskCompleted }

// DelegationError describes why a delegation did not complete. It matches
// ErrDelegationFailed and its cause with errors.Is.
type DelegationError struct {
	TaskID string
	Agent  string
	Reason string
	Cause  error
}

func (e *DelegationError) Error() string {
	if e.Reason == "" && e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", ErrDelegationFailed, e.Agent, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", ErrDelegationFailed, e.Agent, e.Reason)
}

func (e *DelegationError) Is(target error) bool { return target == ErrDelegationFailed }

func (e *DelegationError) Unwrap() error { return e.Cause }

// failedResult builds a Failed or Cancelled result for task.
func failedResult(task *DelegationTask, state TaskState, reason string, cause error) *Result {
	if reason == "" && cause != nil {
		reason = cause.Error()
	}
	return &Result{
		TaskID: task.ID,
		Agent:  task.TargetAgent,
		State:  state,
		Err: &DelegationError{
			TaskID: task.ID,
			Agent:  task.TargetAgent,
			Reason: reason,
			Cause:  cause,
		},
	}
}

// Reason returns the failure reason, or "" for a completed result.
func (r *Result) Reason() string {
	var de *DelegationError
	if errors.As(r.Err, &de) {
		return de.Reason
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}
