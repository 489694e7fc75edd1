package kaya

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// EventType tags the events emitted through an EventStream.
type EventType string

const (
	EventStatus         EventType = "status"
	EventTextDelta      EventType = "text-delta"
	EventToolInvocation EventType = "tool-invocation"
	EventCompletion     EventType = "completion"
)

// Event is the interface implemented by all stream events. ContextID names
// the conversation that produced the event and Agent its agent.
type Event interface {
	Type() EventType
	Source() (contextID, agent string)
}

// Origin identifies the conversation and agent behind an event.
type Origin struct {
	ContextID string
	Agent     string
}

func (o Origin) Source() (string, string) { return o.ContextID, o.Agent }

// StatusEvent reports lifecycle changes: a turn starting, a delegation being
// dispatched, finishing, failing or being cancelled.
type StatusEvent struct {
	Origin
	TaskID  string
	State   TaskState
	Message string
}

func (e *StatusEvent) Type() EventType { return EventStatus }

// TextDeltaEvent carries a fragment of streamed model output.
type TextDeltaEvent struct {
	Origin
	Delta string
}

func (e *TextDeltaEvent) Type() EventType { return EventTextDelta }

// ToolPhase distinguishes the start and the end of a capability call.
type ToolPhase string

const (
	ToolStarted  ToolPhase = "started"
	ToolFinished ToolPhase = "finished"
)

// ToolInvocationEvent is emitted before and after a capability call.
type ToolInvocationEvent struct {
	Origin
	Phase     ToolPhase
	ToolUseID string
	Name      string
	Input     json.RawMessage
	Output    string // set when Phase is ToolFinished
	IsError   bool
}

func (e *ToolInvocationEvent) Type() EventType { return EventToolInvocation }

// Usage tracks token consumption.
type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheReadInputTokens     int64
	CacheCreationInputTokens int64
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:              u.InputTokens + o.InputTokens,
		OutputTokens:             u.OutputTokens + o.OutputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + o.CacheReadInputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + o.CacheCreationInputTokens,
	}
}

// CompletionEvent closes a conversation turn.
type CompletionEvent struct {
	Origin
	Text     string
	NumTurns int
	Usage    Usage
	Cost     decimal.Decimal
	IsError  bool
	Errors   []string
}

func (e *CompletionEvent) Type() EventType { return EventCompletion }

// EventSink receives events. Implementations must be safe for concurrent
// use; sub-agents running in parallel share the root's sink.
type EventSink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(e Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type discardSink struct{}

func (discardSink) Emit(Event) {}
