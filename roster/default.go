package roster

import (
	"slices"

	"github.com/armatrix/kaya/bridge"
)

// PlaywrightServer is the bridge name browser tools are registered under.
const PlaywrightServer = "Playwright"

// PlaywrightTools are the browser tools the Playwright MCP server offers.
var PlaywrightTools = []string{
	"browser_close",
	"browser_resize",
	"browser_console_messages",
	"browser_handle_dialog",
	"browser_evaluate",
	"browser_file_upload",
	"browser_fill_form",
	"browser_install",
	"browser_press_key",
	"browser_type",
	"browser_navigate",
	"browser_navigate_back",
	"browser_network_requests",
	"browser_take_screenshot",
	"browser_snapshot",
	"browser_click",
	"browser_drag",
	"browser_hover",
	"browser_select_option",
	"browser_tabs",
	"browser_wait_for",
}

// Playwright launches @playwright/mcp through npx. It needs Node.js and a
// Chrome install.
func Playwright() bridge.ServerConfig {
	return bridge.ServerConfig{
		Command:   "npx",
		Args:      []string{"-y", "@playwright/mcp@latest"},
		Transport: bridge.TransportStdio,
		Tools:     slices.Clone(PlaywrightTools),
	}
}

func browserTools() []string {
	names := make([]string, len(PlaywrightTools))
	for i, t := range PlaywrightTools {
		names[i] = bridge.ToolName(PlaywrightServer, t)
	}
	return names
}

var (
	editTools = []string{"Read", "Write", "Edit", "MultiEdit", "Grep", "Glob", "TodoWrite"}
	webTools  = []string{"WebSearch", "WebFetch"}
)

func tools(groups ...[]string) []string {
	return slices.Concat(groups...)
}

// Default returns the built-in Kaya setup: a coordinator that delegates to
// five specialists working on the todo list application.
func Default() *Config {
	return &Config{
		Root: AgentSpec{
			Name: "kaya",
			Prompt: "You are Kaya, a personal assistant. Answer directly when you can. " +
				"Delegate specialised work to a sub-agent with the Task tool, and run " +
				"independent tasks in one batch so they proceed in parallel.",
			Tools: tools(editTools, []string{"Task"}, webTools, browserTools()),
		},
		Agents: []AgentSpec{
			{
				Name:        "feature-analyst",
				Description: "An expert at analyzing feature requests and creating detailed technical specifications for the todo list application.",
				Prompt:      "You are a Feature Analyst expert specializing in understanding user requirements and translating them into clear, actionable technical specifications for the todo list application. Analyze feature requests, examine the existing codebase structure, and create detailed specifications in the /docs directory.",
				Model:       "sonnet",
				Tools:       tools(editTools),
			},
			{
				Name:        "developer",
				Description: "An expert full-stack developer who implements features for the todo list application following technical specifications.",
				Prompt:      "You are an expert Full-Stack Developer specializing in TypeScript, React, Express.js, and SQLite. Implement features for the todo list application based on specifications or requirements. You do NOT run the application - that's the app-runner's job.",
				Model:       "sonnet",
				Tools:       tools(editTools, []string{"Bash"}),
			},
			{
				Name:        "app-runner",
				Description: "An expert at running and managing the local development environment for the todo list application.",
				Prompt:      "You are an expert at managing local development environments. Start, stop, and monitor the todo list application's development servers. Use bun for package management. You ONLY manage the application runtime - you do NOT write code or run tests.",
				Model:       "sonnet",
				Tools:       []string{"Bash", "BashOutput", "KillShell", "Read", "TodoWrite"},
			},
			{
				Name:        "qa-tester",
				Description: "An expert QA engineer who uses Playwright to test the todo list application running locally.",
				Prompt:      "You are an expert QA Engineer specializing in automated browser testing with Playwright. Test the todo list application at http://localhost:5173, verify functionality, and create test reports in the /docs directory. You ONLY test the running application - you do NOT write code or run servers.",
				Model:       "sonnet",
				Tools:       tools([]string{"Read", "Write", "TodoWrite"}, browserTools()),
			},
			{
				Name:        "researcher",
				Description: "An expert researcher and documentation writer. The agent will perform deep research of a topic and generate a report or documentation in the /docs directory.",
				Prompt:      "You are an expert researcher and report/documentation writer. Use the WebSearch and WebFetch tools to perform research. You can research multiple subtopics/angles to get a holistic understanding of the topic. You can use filesystem tools to track findings and data in the /docs directory. For longer reports, you can break the work into multiple tasks or write sections at a time. But the final output should be a single markdown report. The final report **MUST** include a citations section with links to all sources used. Review the full report, identify any areas for improvement in readability, coherence, and relevancy, and make any necessary edits before declaring the task complete. Clean up any extraneous files and only leave the final report in the /docs directory when you are done. You are only permitted to use these specific tools: Read, Write, Edit, MultiEdit, Grep, Glob, TodoWrite, WebSearch, WebFetch. All other tools are prohibited.",
				Model:       "sonnet",
				Tools:       tools(editTools, webTools),
			},
		},
		Bridges:        map[string]bridge.ServerConfig{PlaywrightServer: Playwright()},
		PermissionMode: "acceptEdits",
	}
}
