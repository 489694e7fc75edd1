// Package enginetest provides a scripted MessageStreamer and SSE builders
// for tests that drive the engine loop without the API.
package enginetest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// Streamer replays pre-built SSE responses, one per call. It records the
// request parameters it was called with.
type Streamer struct {
	mu        sync.Mutex
	responses []string
	errs      map[int]error
	calls     []anthropic.MessageNewParams
}

// NewStreamer returns a streamer replaying responses in order.
func NewStreamer(responses ...string) *Streamer {
	return &Streamer{responses: responses, errs: make(map[int]error)}
}

// FailCall makes call idx (zero-based) return err instead of a response.
func (s *Streamer) FailCall(idx int, err error) *Streamer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[idx] = err
	return s
}

// Calls returns the parameters of every call so far.
func (s *Streamer) Calls() []anthropic.MessageNewParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]anthropic.MessageNewParams(nil), s.calls...)
}

func (s *Streamer) NewStreaming(_ context.Context, params anthropic.MessageNewParams) *ssestream.Stream[anthropic.MessageStreamEventUnion] {
	s.mu.Lock()
	idx := len(s.calls)
	s.calls = append(s.calls, params)
	err := s.errs[idx]
	var body string
	// Failed calls do not consume a response.
	failures := 0
	for i := range idx {
		if s.errs[i] != nil {
			failures++
		}
	}
	if n := idx - failures; err == nil && n < len(s.responses) {
		body = s.responses[n]
	} else if err == nil {
		err = fmt.Errorf("no more mock responses")
	}
	s.mu.Unlock()

	if err != nil {
		return ssestream.NewStream[anthropic.MessageStreamEventUnion](nil, err)
	}
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
	return ssestream.NewStream[anthropic.MessageStreamEventUnion](ssestream.NewDecoder(resp), nil)
}

// Event is one SSE event.
type Event struct {
	Type string
	Data string
}

// SSE joins events into an SSE body.
func SSE(events ...Event) string {
	var sb strings.Builder
	for _, e := range events {
		fmt.Fprintf(&sb, "event: %s\ndata: %s\n\n", e.Type, e.Data)
	}
	return sb.String()
}

func MessageStart(model string, inputTokens int64) Event {
	return Event{
		Type: "message_start",
		Data: fmt.Sprintf(`{"type":"message_start","message":{"id":"msg_test","type":"message","role":"assistant","content":[],"model":"%s","stop_reason":null,"usage":{"input_tokens":%d,"output_tokens":0}}}`, model, inputTokens),
	}
}

func TextStart(index int) Event {
	return Event{
		Type: "content_block_start",
		Data: fmt.Sprintf(`{"type":"content_block_start","index":%d,"content_block":{"type":"text","text":""}}`, index),
	}
}

func TextDelta(index int, text string) Event {
	return Event{
		Type: "content_block_delta",
		Data: fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"text_delta","text":"%s"}}`, index, text),
	}
}

func BlockStop(index int) Event {
	return Event{
		Type: "content_block_stop",
		Data: fmt.Sprintf(`{"type":"content_block_stop","index":%d}`, index),
	}
}

func ToolUseStart(index int, id, name string) Event {
	return Event{
		Type: "content_block_start",
		Data: fmt.Sprintf(`{"type":"content_block_start","index":%d,"content_block":{"type":"tool_use","id":"%s","name":"%s","input":{}}}`, index, id, name),
	}
}

// InputJSONDelta carries partial tool input. Quotes in partial must be
// escaped for embedding in JSON.
func InputJSONDelta(index int, partial string) Event {
	return Event{
		Type: "content_block_delta",
		Data: fmt.Sprintf(`{"type":"content_block_delta","index":%d,"delta":{"type":"input_json_delta","partial_json":"%s"}}`, index, partial),
	}
}

func MessageDelta(stopReason string, outputTokens int64) Event {
	return Event{
		Type: "message_delta",
		Data: fmt.Sprintf(`{"type":"message_delta","delta":{"stop_reason":"%s","stop_sequence":null},"usage":{"output_tokens":%d}}`, stopReason, outputTokens),
	}
}

func MessageStop() Event {
	return Event{Type: "message_stop", Data: `{"type":"message_stop"}`}
}

// TextReply is a complete single-text-block response.
func TextReply(model, text string) string {
	return SSE(
		MessageStart(model, 10),
		TextStart(0),
		TextDelta(0, text),
		BlockStop(0),
		MessageDelta("end_turn", 5),
		MessageStop(),
	)
}

// ToolCall is a complete response requesting one tool call. input must
// already be escaped for embedding in JSON.
func ToolCall(model, id, name, input string) string {
	return SSE(
		MessageStart(model, 10),
		ToolUseStart(0, id, name),
		InputJSONDelta(0, input),
		BlockStop(0),
		MessageDelta("tool_use", 10),
		MessageStop(),
	)
}
