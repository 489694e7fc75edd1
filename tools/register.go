package tools

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/armatrix/kaya"
)

// Options configures the built-in tools.
type Options struct {
	// Search backs WebSearch. When nil the tool is still registered and
	// reports that no backend is configured.
	Search SearchFunc
	// HTTPClient is used by WebFetch; nil uses http.DefaultClient.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// RegisterAll registers every built-in tool into reg. The returned
// ShellManager owns background commands and must be closed with the session.
func RegisterAll(reg *kaya.Registry, opts Options) (*ShellManager, error) {
	shells := NewShellManager(opts.Logger)
	err := errors.Join(
		kaya.RegisterTool(reg, &ReadTool{}),
		kaya.RegisterTool(reg, &WriteTool{}),
		kaya.RegisterTool(reg, &EditTool{}),
		kaya.RegisterTool(reg, &MultiEditTool{}),
		kaya.RegisterTool(reg, &GlobTool{}),
		kaya.RegisterTool(reg, &GrepTool{}),
		kaya.RegisterTool(reg, &BashTool{Shells: shells}),
		kaya.RegisterTool(reg, &BashOutputTool{Shells: shells}),
		kaya.RegisterTool(reg, &KillShellTool{Shells: shells}),
		kaya.RegisterTool(reg, &TodoTool{}),
		kaya.RegisterTool(reg, &WebFetchTool{Client: opts.HTTPClient}),
		kaya.RegisterTool(reg, &WebSearchTool{Search: opts.Search}),
	)
	if err != nil {
		return nil, err
	}
	return shells, nil
}

// Names lists the capability names RegisterAll provides.
func Names() []string {
	return []string{
		"Read", "Write", "Edit", "MultiEdit", "Glob", "Grep",
		"Bash", "BashOutput", "KillShell", "TodoWrite", "WebFetch", "WebSearch",
	}
}
