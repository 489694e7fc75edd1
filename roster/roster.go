// Package roster holds the built-in Kaya agent roster and loads replacement
// rosters from YAML files.
package roster

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/armatrix/kaya"
	"github.com/armatrix/kaya/bridge"
	"github.com/armatrix/kaya/permission"
)

// Config is the complete agent setup of one assistant: the coordinating
// agent, its sub-agents and the bridges their tools come from.
type Config struct {
	Root           AgentSpec                      `yaml:"root"`
	Agents         []AgentSpec                    `yaml:"agents"`
	Bridges        map[string]bridge.ServerConfig `yaml:"bridges,omitempty"`
	PermissionMode string                         `yaml:"permission_mode,omitempty"`
}

// AgentSpec is the file form of a kaya.AgentDefinition. An empty Tools list
// inherits every registered capability.
type AgentSpec struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Prompt      string   `yaml:"prompt"`
	Model       string   `yaml:"model,omitempty"`
	Tools       []string `yaml:"tools"`
	MaxTurns    int      `yaml:"max_turns,omitempty"`
	MaxBudget   string   `yaml:"max_budget,omitempty"`
}

// Definition converts s into a validated kaya.AgentDefinition.
func (s AgentSpec) Definition() (kaya.AgentDefinition, error) {
	def := kaya.AgentDefinition{
		Name:         s.Name,
		Description:  strings.TrimSpace(s.Description),
		SystemPrompt: strings.TrimSpace(s.Prompt),
		Model:        s.Model,
		MaxTurns:     s.MaxTurns,
		Capabilities: kaya.Only(s.Tools...),
	}
	if s.MaxBudget != "" {
		b, err := decimal.NewFromString(s.MaxBudget)
		if err != nil {
			return kaya.AgentDefinition{}, fmt.Errorf("%w: %s: max_budget %q: %v", kaya.ErrInvalidDefinition, s.Name, s.MaxBudget, err)
		}
		def.MaxBudget = b
	}
	return def, def.Validate()
}

// Roster builds the validated roster of sub-agents.
func (c *Config) Roster() (*kaya.Roster, error) {
	defs := make([]kaya.AgentDefinition, 0, len(c.Agents))
	for _, spec := range c.Agents {
		def, err := spec.Definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return kaya.NewRoster(defs...)
}

// RootDefinition returns the coordinating agent's definition.
func (c *Config) RootDefinition() (kaya.AgentDefinition, error) {
	return c.Root.Definition()
}

// Mode parses PermissionMode.
func (c *Config) Mode() (permission.Mode, error) {
	return permission.ParseMode(c.PermissionMode)
}

// Load reads a roster file. Sections the file omits keep their built-in
// values, so a file may replace only the agents.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

// Parse decodes a roster document on top of Default.
func Parse(data []byte) (*Config, error) {
	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	cfg := Default()
	if file.Root.Name != "" {
		cfg.Root = file.Root
	}
	if file.Agents != nil {
		cfg.Agents = file.Agents
	}
	if file.Bridges != nil {
		cfg.Bridges = file.Bridges
	}
	if file.PermissionMode != "" {
		cfg.PermissionMode = file.PermissionMode
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Roster(); err != nil {
		return err
	}
	if _, err := c.RootDefinition(); err != nil {
		return err
	}
	if _, err := c.Mode(); err != nil {
		return err
	}
	for _, name := range c.BridgeNames() {
		if err := c.Bridges[name].Validate(); err != nil {
			return fmt.Errorf("bridge %s: %w", name, err)
		}
	}
	return nil
}

// Preapproved lists, in order and without duplicates, every tool the root or
// a sub-agent names explicitly. Naming a tool both restricts the agent to it
// and approves its use, so these become allow rules.
func (c *Config) Preapproved() []string {
	var names []string
	for _, spec := range append([]AgentSpec{c.Root}, c.Agents...) {
		for _, tool := range spec.Tools {
			if !slices.Contains(names, tool) {
				names = append(names, tool)
			}
		}
	}
	return names
}

// BridgeNames returns the configured bridge names, sorted.
func (c *Config) BridgeNames() []string {
	names := make([]string, 0, len(c.Bridges))
	for name := range c.Bridges {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
