package kaya

import (
	"context"
	"sync"
)

// EventStream is a lazy, order-preserving iterator over the events of one
// turn. It ends when the turn completes, fails or is closed.
// Usage:
//
//	stream := session.Query(ctx, "summarize the repo")
//	defer stream.Close()
//	for stream.Next() {
//	    switch e := stream.Current().(type) {
//	    case *kaya.TextDeltaEvent:
//	        fmt.Print(e.Delta)
//	    }
//	}
//	if err := stream.Err(); err != nil {
//	    // handle error
//	}
type EventStream struct {
	events  chan Event
	current Event
	done    bool
	cancel  context.CancelFunc
	conv    *Conversation

	mu     sync.Mutex
	ctx    context.Context
	closed bool
	err    error
}

// newEventStream returns a stream whose producer side is bound to ctx.
// Cancelling ctx, or calling Close, unblocks any pending Emit.
func newEventStream(ctx context.Context, cancel context.CancelFunc, conv *Conversation) *EventStream {
	return &EventStream{
		events: make(chan Event, 64),
		cancel: cancel,
		conv:   conv,
		ctx:    ctx,
	}
}

// Emit implements EventSink for the producer side. Events emitted after the
// stream finished are dropped.
func (s *EventStream) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	case <-s.ctx.Done():
	}
}

// finish records err and ends the stream. Safe to call more than once.
func (s *EventStream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.events)
}

// Next advances to the next event. Returns false when the stream is exhausted.
func (s *EventStream) Next() bool {
	if s.done {
		return false
	}
	event, ok := <-s.events
	if !ok {
		s.done = true
		return false
	}
	s.current = event
	return true
}

// Current returns the most recent event returned by Next.
func (s *EventStream) Current() Event {
	return s.current
}

// Err returns the error that ended the turn, if any. Valid once Next has
// returned false.
func (s *EventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Conversation returns the conversation the turn ran against.
func (s *EventStream) Conversation() *Conversation {
	return s.conv
}

// Close cancels the turn and discards the remaining events.
func (s *EventStream) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	for range s.events {
	}
	s.done = true
}

// closedStream returns a stream that is already finished with err.
func closedStream(err error) *EventStream {
	s := newEventStream(context.Background(), nil, nil)
	s.finish(err)
	return s
}
