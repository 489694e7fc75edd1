package kaya

import (
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"go.opentelemetry.io/otel/trace"
)

// CoordinatorOption configures a Coordinator via the functional options pattern.
type CoordinatorOption func(*coordinatorOptions)

type coordinatorOptions struct {
	logger         *slog.Logger
	tracer         trace.Tracer
	maxParallel    int
	defaultTimeout time.Duration
	defaultModel   anthropic.Model
	store          ConversationStore
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(o *coordinatorOptions) { o.logger = l }
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) CoordinatorOption {
	return func(o *coordinatorOptions) { o.tracer = t }
}

// WithMaxParallel bounds how many tasks DispatchMany runs at once. 0 means
// no bound.
func WithMaxParallel(n int) CoordinatorOption {
	return func(o *coordinatorOptions) { o.maxParallel = n }
}

// WithDefaultTimeout bounds tasks that carry no Timeout of their own. 0
// means no timeout.
func WithDefaultTimeout(d time.Duration) CoordinatorOption {
	return func(o *coordinatorOptions) { o.defaultTimeout = d }
}

// WithDefaultModel sets the model that "inherit" and empty selectors resolve to.
func WithDefaultModel(m anthropic.Model) CoordinatorOption {
	return func(o *coordinatorOptions) { o.defaultModel = m }
}

// WithConversationStore persists every finished child conversation.
func WithConversationStore(s ConversationStore) CoordinatorOption {
	return func(o *coordinatorOptions) { o.store = s }
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// Releaser is a resource the session must release on teardown, such as a
// bridge process.
type Releaser interface {
	Close() error
}

type sessionOptions struct {
	root       AgentDefinition
	releasers  []Releaser
	store      ConversationStore
	logger     *slog.Logger
	model      anthropic.Model
	maxTurns   int
	noDelegate bool
}

// WithRootAgent sets the definition of the coordinating agent: its prompt,
// model and capability policy.
func WithRootAgent(def AgentDefinition) SessionOption {
	return func(o *sessionOptions) { o.root = def }
}

// WithReleaser registers a resource released on Close, after outstanding
// tasks are cancelled. Releasers run in registration order.
func WithReleaser(r Releaser) SessionOption {
	return func(o *sessionOptions) { o.releasers = append(o.releasers, r) }
}

// WithTranscriptStore saves the root conversation on Close.
func WithTranscriptStore(s ConversationStore) SessionOption {
	return func(o *sessionOptions) { o.store = s }
}

// WithSessionLogger sets the session's logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(o *sessionOptions) { o.logger = l }
}

// WithModel overrides the root agent's model.
func WithModel(m anthropic.Model) SessionOption {
	return func(o *sessionOptions) { o.model = m }
}

// WithMaxTurns limits each root turn. 0 means unlimited.
func WithMaxTurns(n int) SessionOption {
	return func(o *sessionOptions) { o.maxTurns = n }
}

// WithoutDelegation withholds the Task capability from the root conversation.
func WithoutDelegation() SessionOption {
	return func(o *sessionOptions) { o.noDelegate = true }
}
