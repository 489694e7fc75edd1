package kaya

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContextWorkDir(t *testing.T) {
	ctx := WithContextWorkDir(context.Background(), "/tmp/workdir")
	assert.Equal(t, "/tmp/workdir", ContextWorkDir(ctx))
}

func TestContextWorkDir_Empty(t *testing.T) {
	assert.Equal(t, "", ContextWorkDir(context.Background()))
}

func TestContextEventSink_DefaultsToDiscard(t *testing.T) {
	sink := ContextEventSink(context.Background())
	assert.NotPanics(t, func() { sink.Emit(&StatusEvent{Message: "x"}) })
}

func TestWithEventSink(t *testing.T) {
	var got []Event
	ctx := WithEventSink(context.Background(), SinkFunc(func(e Event) { got = append(got, e) }))

	ContextEventSink(ctx).Emit(&TextDeltaEvent{Delta: "hi"})
	assert.Len(t, got, 1)
}

func TestWithConversationID(t *testing.T) {
	ctx := WithConversationID(context.Background(), "ctx_1")
	assert.Equal(t, "ctx_1", ContextConversationID(ctx))
	assert.Equal(t, "", ContextConversationID(context.Background()))
}
