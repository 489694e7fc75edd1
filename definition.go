package kaya

import (
	"fmt"
	"slices"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
)

// CapabilityPolicy decides which registered capabilities an agent may use.
// The zero value inherits everything.
type CapabilityPolicy struct {
	explicit bool
	names    []string
}

// InheritAll returns a policy that exposes the whole registry.
func InheritAll() CapabilityPolicy {
	return CapabilityPolicy{}
}

// Only returns a policy restricted to names. Duplicates are dropped. An empty
// list is the same as InheritAll.
func Only(names ...string) CapabilityPolicy {
	if len(names) == 0 {
		return InheritAll()
	}
	p := CapabilityPolicy{explicit: true}
	for _, n := range names {
		if n != "" && !slices.Contains(p.names, n) {
			p.names = append(p.names, n)
		}
	}
	return p
}

// InheritsAll reports whether the policy exposes the whole registry.
func (p CapabilityPolicy) InheritsAll() bool { return !p.explicit }

// Names returns the explicit subset, or nil for an inherit-all policy.
func (p CapabilityPolicy) Names() []string { return slices.Clone(p.names) }

// Allows reports whether name passes the policy.
func (p CapabilityPolicy) Allows(name string) bool {
	return !p.explicit || slices.Contains(p.names, name)
}

// Without returns the policy minus names. An explicit policy stays explicit
// even when nothing is left.
func (p CapabilityPolicy) Without(names ...string) CapabilityPolicy {
	if !p.explicit {
		return p
	}
	out := CapabilityPolicy{explicit: true}
	for _, n := range p.names {
		if !slices.Contains(names, n) {
			out.names = append(out.names, n)
		}
	}
	return out
}

// Model selector aliases accepted in AgentDefinition.Model.
const (
	ModelInherit = "inherit"
	ModelSonnet  = "sonnet"
	ModelOpus    = "opus"
	ModelHaiku   = "haiku"
)

// ResolveModel maps a selector to a concrete model. Empty and "inherit"
// resolve to fallback; unknown selectors pass through unchanged.
func ResolveModel(selector string, fallback anthropic.Model) anthropic.Model {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "", ModelInherit:
		return fallback
	case ModelSonnet:
		return anthropic.ModelClaudeSonnet4_5
	case ModelOpus:
		return anthropic.ModelClaudeOpus4_6
	case ModelHaiku:
		return anthropic.ModelClaudeHaiku4_5
	default:
		return anthropic.Model(selector)
	}
}

// AgentDefinition describes a named sub-agent. Definitions are created at
// configuration time and never mutated afterwards.
type AgentDefinition struct {
	// Name is the unique key used to target the agent in a DelegationTask.
	Name string

	// Description tells the coordinating model when to pick this agent.
	Description string

	// SystemPrompt seeds every conversation of this agent.
	SystemPrompt string

	// Capabilities restricts which registered capabilities the agent sees.
	Capabilities CapabilityPolicy

	// Model is a selector such as "sonnet" or a full model id. Empty inherits.
	Model string

	// MaxTurns limits the agent's loop iterations. 0 means inherit.
	MaxTurns int

	// MaxBudget limits the agent's spend in USD. Zero means inherit.
	MaxBudget decimal.Decimal
}

// Validate checks the definition's own fields.
func (d AgentDefinition) Validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	case strings.ContainsAny(d.Name, " \t\n"):
		return fmt.Errorf("%w: name %q contains whitespace", ErrInvalidDefinition, d.Name)
	case d.MaxTurns < 0:
		return fmt.Errorf("%w: %s: negative max turns", ErrInvalidDefinition, d.Name)
	case d.MaxBudget.IsNegative():
		return fmt.Errorf("%w: %s: negative max budget", ErrInvalidDefinition, d.Name)
	}
	return nil
}

// Roster is an ordered, validated set of agent definitions.
type Roster struct {
	defs  map[string]AgentDefinition
	order []string
}

// NewRoster validates defs and returns them as a roster.
func NewRoster(defs ...AgentDefinition) (*Roster, error) {
	r := &Roster{defs: make(map[string]AgentDefinition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.defs[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, d.Name)
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Get returns the definition registered under name.
func (r *Roster) Get(name string) (AgentDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns agent names in declaration order.
func (r *Roster) Names() []string { return slices.Clone(r.order) }

// Definitions returns all definitions in declaration order.
func (r *Roster) Definitions() []AgentDefinition {
	out := make([]AgentDefinition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.defs[n])
	}
	return out
}

// Len returns the number of definitions.
func (r *Roster) Len() int { return len(r.order) }

// Describe renders "- name: description" lines for every agent.
func (r *Roster) Describe() string {
	var sb strings.Builder
	for _, n := range r.order {
		fmt.Fprintf(&sb, "- %s: %s\n", n, r.defs[n].Description)
	}
	return sb.String()
}
