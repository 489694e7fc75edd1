package kaya

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// Session is the top-level state of one interactive client: the root
// conversation, the coordinator tracking outstanding delegations, and the
// resources to release on teardown. Sessions are not global; pass them by
// reference to whatever drives them.
type Session struct {
	ID string

	coord  *Coordinator
	root   *Conversation
	caps   *CapabilitySet
	opts   sessionOptions
	logger *slog.Logger

	mu         sync.Mutex
	closed     bool
	turnCancel context.CancelFunc
	turnDone   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates the root conversation. The root agent sees its own
// capability view plus the Task capability, unless its explicit policy
// leaves Task out or WithoutDelegation is given.
func NewSession(coord *Coordinator, opts ...SessionOption) (*Session, error) {
	o := sessionOptions{
		root:   AgentDefinition{Name: "kaya", Capabilities: InheritAll()},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, fn := range opts {
		fn(&o)
	}
	if err := o.root.Validate(); err != nil {
		return nil, err
	}

	caps, err := coord.registry.listFor(o.root.Capabilities.Without(TaskCapability))
	if err != nil {
		return nil, fmt.Errorf("root agent %s: %w", o.root.Name, err)
	}
	if !o.noDelegate && o.root.Capabilities.Allows(TaskCapability) {
		caps = caps.With(TaskCapability, NewDelegateHandle(coord))
	}

	model := o.model
	if model == "" {
		model = ResolveModel(o.root.Model, coord.opts.defaultModel)
	}
	maxTurns := o.maxTurns
	if maxTurns == 0 {
		maxTurns = o.root.MaxTurns
	}
	o.maxTurns = maxTurns

	s := &Session{
		ID:     GenerateID(PrefixSession),
		coord:  coord,
		root:   NewConversation(o.root.Name, model, o.root.SystemPrompt),
		caps:   caps,
		opts:   o,
		logger: o.logger,
	}
	s.logger.Info("session started", "session_id", s.ID, "model", model, "capabilities", len(caps.Names()))
	return s, nil
}

// Conversation returns the root conversation.
func (s *Session) Conversation() *Conversation { return s.root }

// Coordinator returns the session's coordinator.
func (s *Session) Coordinator() *Coordinator { return s.coord }

// Capabilities returns the root conversation's capability view.
func (s *Session) Capabilities() *CapabilitySet { return s.caps }

// Model returns the root conversation's model.
func (s *Session) Model() anthropic.Model { return s.root.Model }

// Query appends input to the root conversation and runs one root turn.
// Only one turn runs at a time; the returned stream ends with the turn.
func (s *Session) Query(ctx context.Context, input string) *EventStream {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return closedStream(ErrSessionClosed)
	}
	if s.turnDone != nil {
		s.mu.Unlock()
		return closedStream(ErrTurnInProgress)
	}
	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.turnCancel, s.turnDone = cancel, done
	s.mu.Unlock()

	stream := newEventStream(turnCtx, cancel, s.root)
	origin := Origin{ContextID: s.root.ID, Agent: s.root.Agent}

	go func() {
		defer close(done)
		defer cancel()

		s.root.AppendUser(input)
		runCtx := WithEventSink(WithConversationID(turnCtx, s.root.ID), stream)
		stream.Emit(&StatusEvent{Origin: origin, Message: "thinking"})

		out := s.coord.runner.Run(runCtx, Run{
			Conversation: s.root,
			Capabilities: s.caps,
			MaxTurns:     s.opts.maxTurns,
			MaxBudget:    s.opts.root.MaxBudget,
			Sink:         stream,
		})
		stream.Emit(&CompletionEvent{
			Origin:   origin,
			Text:     out.Text,
			NumTurns: out.NumTurns,
			Usage:    out.Usage,
			Cost:     out.Cost,
			IsError:  out.Err != nil,
			Errors:   errorList(out.Err),
		})
		if out.Err != nil {
			s.logger.Warn("turn failed", "session_id", s.ID, "error", out.Err)
		}

		s.mu.Lock()
		s.turnCancel, s.turnDone = nil, nil
		s.mu.Unlock()
		stream.finish(out.Err)
	}()

	return stream
}

// Close tears the session down: outstanding delegations are cancelled
// first, then the running turn is stopped, then releasers run, then the
// root conversation is saved. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.teardown() })
	return s.closeErr
}

func (s *Session) teardown() error {
	s.mu.Lock()
	s.closed = true
	cancel, done := s.turnCancel, s.turnDone
	s.mu.Unlock()

	if n := s.coord.CancelAll(); n > 0 {
		s.logger.Info("cancelled outstanding delegations", "session_id", s.ID, "count", n)
	}
	if cancel != nil {
		cancel()
		<-done
	}

	var errs []error
	for _, r := range s.opts.releasers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.opts.store != nil && len(s.root.Messages) > 0 {
		if err := s.opts.store.Save(context.Background(), s.root); err != nil {
			errs = append(errs, fmt.Errorf("saving root conversation: %w", err))
		}
	}
	s.logger.Info("session closed", "session_id", s.ID)
	return errors.Join(errs...)
}
