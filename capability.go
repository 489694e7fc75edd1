package kaya

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/armatrix/kaya/internal/schema"
)

const tracerName = "github.com/armatrix/kaya"

// Kind distinguishes in-process capabilities from those forwarded to a bridge process.
type Kind int

const (
	KindLocal  Kind = iota // executes in-process
	KindRemote             // forwarded to a bridge process
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Handle is the implementation behind a capability name.
type Handle interface {
	Kind() Kind
	Description() string
	Schema() anthropic.ToolInputSchemaParam
	Invoke(ctx context.Context, input json.RawMessage) (*ToolResult, error)
}

// Availability is implemented by handles whose backing provider can be down,
// such as remote handles of a bridge that failed to launch.
type Availability interface {
	Available() bool
}

func available(h Handle) bool {
	if a, ok := h.(Availability); ok {
		return a.Available()
	}
	return true
}

// ToolResult is the output of a capability invocation.
type ToolResult struct {
	Content  []anthropic.ContentBlockParamUnion
	IsError  bool
	Metadata map[string]any
}

// TextResult is a convenience constructor for a text-only result.
func TextResult(text string) *ToolResult {
	return &ToolResult{
		Content: []anthropic.ContentBlockParamUnion{
			anthropic.NewTextBlock(text),
		},
	}
}

// ErrorResult is a convenience constructor for an error result.
func ErrorResult(text string) *ToolResult {
	return &ToolResult{
		Content: []anthropic.ContentBlockParamUnion{
			anthropic.NewTextBlock(text),
		},
		IsError: true,
	}
}

// Text joins the text blocks of the result.
func (r *ToolResult) Text() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, block := range r.Content {
		if t := block.GetText(); t != nil {
			parts = append(parts, *t)
		}
	}
	return strings.Join(parts, "\n")
}

// Tool is the generic interface for local capabilities. The type parameter T
// is the input struct, deserialized from JSON and used to derive the schema.
type Tool[T any] interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input T) (*ToolResult, error)
}

// InvokeFunc executes a capability from raw JSON input.
type InvokeFunc func(ctx context.Context, input json.RawMessage) (*ToolResult, error)

type localHandle struct {
	description string
	schema      anthropic.ToolInputSchemaParam
	invoke      InvokeFunc
}

// NewLocal returns a local handle with a pre-built schema.
func NewLocal(description string, inputSchema anthropic.ToolInputSchemaParam, fn InvokeFunc) Handle {
	return &localHandle{description: description, schema: inputSchema, invoke: fn}
}

func (h *localHandle) Kind() Kind                             { return KindLocal }
func (h *localHandle) Description() string                    { return h.description }
func (h *localHandle) Schema() anthropic.ToolInputSchemaParam { return h.schema }

func (h *localHandle) Invoke(ctx context.Context, input json.RawMessage) (*ToolResult, error) {
	return h.invoke(ctx, input)
}

// RegisterTool registers a generic tool under its own name. The input type T
// is used to generate the JSON Schema advertised to the model.
func RegisterTool[T any](r *Registry, tool Tool[T]) error {
	return r.Register(tool.Name(), NewLocal(tool.Description(), schema.Generate[T](),
		func(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
			var input T
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &input); err != nil {
					return ErrorResult(fmt.Sprintf("invalid input: %s", err.Error())), nil
				}
			}
			return tool.Execute(ctx, input)
		}))
}

// Registry maps capability names to handles. Registration happens during
// configuration; once sealed the registry is read-only.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
	order   []string
	sealed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Register adds a handle under name.
func (r *Registry) Register(name string, h Handle) error {
	if name == "" || h == nil {
		return fmt.Errorf("%w: empty name or nil handle", ErrInvalidDefinition)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: %s", ErrRegistrySealed, name)
	}
	if _, exists := r.handles[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCapability, name)
	}
	r.handles[name] = h
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the handle for name. Handles whose provider is down
// resolve as unknown.
func (r *Registry) Resolve(name string) (Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[name]
	r.mu.RUnlock()
	if !ok || !available(h) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	return h, nil
}

// Has reports whether name is registered, available or not.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[name]
	return ok
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// ListFor computes the effective capability set for def. An inherit-all
// policy yields a snapshot of the whole registry; an explicit subset yields
// the intersection and fails if any requested name is not registered.
func (r *Registry) ListFor(def AgentDefinition) (*CapabilitySet, error) {
	return r.listFor(def.Capabilities)
}

func (r *Registry) listFor(policy CapabilityPolicy) (*CapabilitySet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := &CapabilitySet{
		inheritAll: policy.InheritsAll(),
		handles:    make(map[string]Handle),
	}
	if set.inheritAll {
		for _, name := range r.order {
			set.handles[name] = r.handles[name]
		}
		set.order = slices.Clone(r.order)
		return set, nil
	}

	var missing []string
	for _, name := range policy.Names() {
		h, ok := r.handles[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		set.handles[name] = h
		set.order = append(set.order, name)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvableCapability, strings.Join(missing, ", "))
	}
	return set, nil
}

// CapabilitySet is the immutable, capability-restricted view one
// conversation executes against.
type CapabilitySet struct {
	inheritAll bool
	handles    map[string]Handle
	order      []string
}

// InheritsAll reports whether the set was derived from an inherit-all policy.
func (s *CapabilitySet) InheritsAll() bool { return s.inheritAll }

// Resolve returns the handle for name as seen through this set.
func (s *CapabilitySet) Resolve(name string) (Handle, error) {
	h, ok := s.handles[name]
	switch {
	case !ok && s.inheritAll:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrUnresolvableCapability, name)
	case !available(h):
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	return h, nil
}

// Invoke resolves name and runs it with input.
func (s *CapabilitySet) Invoke(ctx context.Context, name string, input json.RawMessage) (*ToolResult, error) {
	h, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "capability.invoke",
		trace.WithAttributes(
			attribute.String("capability.name", name),
			attribute.String("capability.kind", h.Kind().String()),
		))
	defer span.End()

	res, err := h.Invoke(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if res != nil && res.IsError {
		span.SetStatus(codes.Error, "error result")
	}
	return res, err
}

// Names returns every name in the set, available or not.
func (s *CapabilitySet) Names() []string {
	return slices.Clone(s.order)
}

// Contains reports whether name is part of the set.
func (s *CapabilitySet) Contains(name string) bool {
	_, ok := s.handles[name]
	return ok
}

// ListForAPI returns the available capabilities in the format expected by
// the Anthropic Messages API.
func (s *CapabilitySet) ListForAPI() []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(s.order))
	for _, name := range s.order {
		h := s.handles[name]
		if !available(h) {
			continue
		}
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        name,
				Description: param.NewOpt(h.Description()),
				InputSchema: h.Schema(),
			},
		})
	}
	return result
}

// With returns a copy of the set that additionally exposes h under name.
// The receiver is unchanged.
func (s *CapabilitySet) With(name string, h Handle) *CapabilitySet {
	next := &CapabilitySet{
		inheritAll: s.inheritAll,
		handles:    make(map[string]Handle, len(s.handles)+1),
		order:      slices.Clone(s.order),
	}
	for k, v := range s.handles {
		next.handles[k] = v
	}
	if _, exists := next.handles[name]; !exists {
		next.order = append(next.order, name)
	}
	next.handles[name] = h
	return next
}
