package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Decision represents the outcome of a permission check.
type Decision int

const (
	Allow Decision = iota // Tool execution is permitted
	Deny                  // Tool execution is blocked
	Ask                   // User should be prompted for confirmation
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Mode controls the default permission behavior.
type Mode int

const (
	ModeDefault           Mode = iota // read=allow, write/bash=ask
	ModeAcceptEdits                   // read+write=allow, bash=ask
	ModeBypassPermissions             // all=allow
	ModePlan                          // read=allow, write+bash=deny
)

var modeNames = map[Mode]string{
	ModeDefault:           "default",
	ModeAcceptEdits:       "acceptEdits",
	ModeBypassPermissions: "bypassPermissions",
	ModePlan:              "plan",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the names used in settings files, case-insensitively.
// An empty string is ModeDefault.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeDefault, nil
	}
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return ModeDefault, fmt.Errorf("unknown permission mode %q", s)
}

// Func is a user-provided permission callback.
// It receives the tool name and input, returns a Decision.
type Func func(ctx context.Context, toolName string, input json.RawMessage) (Decision, error)

// ReadOnlyTools lists tools classified as read-only.
// These are always allowed in Default and AcceptEdits modes.
var ReadOnlyTools = map[string]bool{
	"Read":       true,
	"Glob":       true,
	"Grep":       true,
	"WebFetch":   true,
	"WebSearch":  true,
	"TodoWrite":  true,
	"BashOutput": true,
}

// WriteTools lists tools classified as write operations.
// Allowed in AcceptEdits and BypassPermissions modes.
var WriteTools = map[string]bool{
	"Write":     true,
	"Edit":      true,
	"MultiEdit": true,
}

// Checker evaluates whether a tool can be used. Declarative rules are
// consulted first, then the callback, then the mode. It is safe for
// concurrent use: sub-agents running in parallel share one checker.
type Checker struct {
	mu         sync.RWMutex
	mode       Mode
	rules      []Rule
	canUseTool Func // Optional user-provided callback, overrides mode-based check
}

// NewChecker creates a permission checker with the given mode.
func NewChecker(mode Mode, canUseTool Func) *Checker {
	return &Checker{mode: mode, canUseTool: canUseTool}
}

// NewCheckerWithRules creates a checker whose rules take precedence over
// both canUseTool and mode.
func NewCheckerWithRules(mode Mode, rules []Rule, canUseTool Func) *Checker {
	return &Checker{mode: mode, rules: rules, canUseTool: canUseTool}
}

// Check evaluates whether the named tool with the given input is allowed.
func (c *Checker) Check(ctx context.Context, toolName string, input json.RawMessage) (Decision, error) {
	c.mu.RLock()
	mode, rules := c.mode, c.rules
	c.mu.RUnlock()

	if d, ok := MatchRules(rules, toolName); ok {
		return d, nil
	}
	if c.canUseTool != nil {
		return c.canUseTool(ctx, toolName, input)
	}

	switch mode {
	case ModeBypassPermissions:
		return Allow, nil
	case ModePlan:
		if ReadOnlyTools[toolName] {
			return Allow, nil
		}
		return Deny, nil
	case ModeAcceptEdits:
		if ReadOnlyTools[toolName] || WriteTools[toolName] {
			return Allow, nil
		}
		return Ask, nil
	default: // ModeDefault
		if ReadOnlyTools[toolName] {
			return Allow, nil
		}
		return Ask, nil
	}
}

// Mode returns the current permission mode.
func (c *Checker) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SetMode updates the permission mode.
func (c *Checker) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

// AddRules appends rules, e.g. to auto-approve a tool for the rest of a
// session after the user said "always".
func (c *Checker) AddRules(rules ...Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rules...)
}
