package kaya

import "context"

type contextKey int

const (
	ctxKeyWorkDir contextKey = iota
	ctxKeySink
	ctxKeyConversation
)

// WithContextWorkDir returns a context with the working directory set.
func WithContextWorkDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, ctxKeyWorkDir, dir)
}

// ContextWorkDir returns the working directory from context, or empty string.
func ContextWorkDir(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyWorkDir).(string); ok {
		return v
	}
	return ""
}

// WithEventSink returns a context whose delegations report to sink.
func WithEventSink(ctx context.Context, sink EventSink) context.Context {
	return context.WithValue(ctx, ctxKeySink, sink)
}

// ContextEventSink returns the sink from context, or one that discards.
func ContextEventSink(ctx context.Context) EventSink {
	if v, ok := ctx.Value(ctxKeySink).(EventSink); ok && v != nil {
		return v
	}
	return discardSink{}
}

// WithConversationID records the conversation a capability call runs in.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyConversation, id)
}

// ContextConversationID returns the calling conversation's ID, or empty string.
func ContextConversationID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyConversation).(string); ok {
		return v
	}
	return ""
}
