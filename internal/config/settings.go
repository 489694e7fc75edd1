// Package config resolves the kaya command's configuration from settings
// files, the environment and command-line flags.
package config

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/armatrix/kaya/bridge"
)

// Settings holds merged configuration from settings files.
// Later sources override earlier ones (user < project).
type Settings struct {
	Model          string                         `json:"model,omitempty"`
	Roster         string                         `json:"roster,omitempty"`
	MaxTurns       int                            `json:"maxTurns,omitempty"`
	MaxBudgetUSD   decimal.Decimal                `json:"maxBudgetUSD,omitzero"`
	MaxParallel    int                            `json:"maxParallel,omitempty"`
	Timeout        string                         `json:"timeout,omitempty"`
	TranscriptDir  string                         `json:"transcriptDir,omitempty"`
	SearXNGURL     string                         `json:"searxngURL,omitempty"`
	PermissionMode string                         `json:"permissionMode,omitempty"`
	Permissions    Permissions                    `json:"permissions,omitzero"`
	MCPServers     map[string]bridge.ServerConfig `json:"mcpServers,omitempty"`
}

// Permissions are glob patterns over capability names.
type Permissions struct {
	Allow []string `json:"allow,omitempty"`
	Ask   []string `json:"ask,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// LoadSettings merges settings from multiple JSON file paths.
// Later paths override earlier ones. Missing files are silently skipped.
func LoadSettings(paths ...string) (*Settings, error) {
	merged := &Settings{}

	for _, path := range paths {
		s, err := loadSettingsFile(path)
		if err != nil {
			continue // Skip missing or invalid files
		}
		mergeSettings(merged, s)
	}

	return merged, nil
}

// DefaultSettingsPaths returns the standard settings file search paths.
func DefaultSettingsPaths(projectDir string) []string {
	home, _ := os.UserHomeDir()
	var paths []string

	// User-level settings
	if home != "" {
		paths = append(paths, filepath.Join(home, ".kaya", "settings.json"))
	}

	// Project-level settings
	if projectDir != "" {
		paths = append(paths,
			filepath.Join(projectDir, ".kaya", "settings.json"),
			filepath.Join(projectDir, ".kaya", "settings.local.json"),
		)
	}

	return paths
}

func loadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func mergeSettings(dst, src *Settings) {
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Roster != "" {
		dst.Roster = src.Roster
	}
	if src.MaxTurns > 0 {
		dst.MaxTurns = src.MaxTurns
	}
	if src.MaxBudgetUSD.IsPositive() {
		dst.MaxBudgetUSD = src.MaxBudgetUSD
	}
	if src.MaxParallel > 0 {
		dst.MaxParallel = src.MaxParallel
	}
	if src.Timeout != "" {
		dst.Timeout = src.Timeout
	}
	if src.TranscriptDir != "" {
		dst.TranscriptDir = src.TranscriptDir
	}
	if src.SearXNGURL != "" {
		dst.SearXNGURL = src.SearXNGURL
	}
	if src.PermissionMode != "" {
		dst.PermissionMode = src.PermissionMode
	}
	// Permission lists accumulate: a project can add a deny rule without
	// restating the user's allow list.
	dst.Permissions.Allow = append(dst.Permissions.Allow, src.Permissions.Allow...)
	dst.Permissions.Ask = append(dst.Permissions.Ask, src.Permissions.Ask...)
	dst.Permissions.Deny = append(dst.Permissions.Deny, src.Permissions.Deny...)
	if len(src.MCPServers) > 0 {
		if dst.MCPServers == nil {
			dst.MCPServers = make(map[string]bridge.ServerConfig)
		}
		maps.Copy(dst.MCPServers, src.MCPServers)
	}
}
