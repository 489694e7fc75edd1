// Package bridge runs MCP servers as capability providers. Each Manager
// owns one server process (or HTTP session), performs the MCP handshake,
// and registers the server's tools as remote capabilities named
// mcp__{server}__{tool}.
package bridge

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// TransportType identifies the MCP transport protocol.
type TransportType string

const (
	// TransportStdio communicates via a subprocess's stdin/stdout.
	TransportStdio TransportType = "stdio"

	// TransportStreamableHTTP communicates via HTTP streaming.
	TransportStreamableHTTP TransportType = "streamable-http"
)

// ErrInvalidConfig is returned when a ServerConfig is missing required fields
// for its transport type.
var ErrInvalidConfig = errors.New("bridge: invalid server config")

// ServerConfig describes how to reach a single MCP server.
type ServerConfig struct {
	// Command is the executable to spawn (stdio transport only).
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Args are command-line arguments for the subprocess.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env are extra environment variables for the subprocess.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// URL is the server address (streamable-http transport).
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Headers are sent with every HTTP request.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Transport selects the protocol. Empty means stdio when Command is set
	// and streamable-http when URL is set.
	Transport TransportType `yaml:"transport,omitempty" json:"transport,omitempty"`

	// Tools are the tool names agents may be granted before the server has
	// been reached. They are registered even if the server never starts.
	Tools []string `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// Resolved returns the transport the config will use.
func (c ServerConfig) Resolved() TransportType {
	switch {
	case c.Transport != "":
		return c.Transport
	case c.Command != "":
		return TransportStdio
	case c.URL != "":
		return TransportStreamableHTTP
	}
	return ""
}

// Validate checks the fields required by the transport.
func (c ServerConfig) Validate() error {
	switch c.Resolved() {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("%w: stdio transport requires command", ErrInvalidConfig)
		}
	case TransportStreamableHTTP:
		if c.URL == "" {
			return fmt.Errorf("%w: streamable-http transport requires url", ErrInvalidConfig)
		}
	case "":
		return fmt.Errorf("%w: command or url is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unsupported transport %q", ErrInvalidConfig, c.Transport)
	}
	return nil
}

func (c ServerConfig) envSlice() []string {
	env := make([]string, 0, len(c.Env))
	for _, k := range slices.Sorted(maps.Keys(c.Env)) {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// ToolName returns the namespaced capability name for an MCP tool.
func ToolName(server, tool string) string {
	return "mcp__" + server + "__" + tool
}
