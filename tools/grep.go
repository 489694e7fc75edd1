package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/armatrix/kaya"
)

// GrepInput defines the input for the Grep tool.
type GrepInput struct {
	Pattern         string `json:"pattern" jsonschema:"required,description=The regex pattern to search for"`
	Path            string `json:"path,omitempty" jsonschema:"description=File or directory to search in"`
	OutputMode      string `json:"output_mode,omitempty" jsonschema:"enum=content,enum=files_with_matches,enum=count,description=What to print; defaults to files_with_matches"`
	Glob            string `json:"glob,omitempty" jsonschema:"description=Glob pattern to filter files"`
	Type            string `json:"type,omitempty" jsonschema:"description=File type to search (e.g. go or py or js)"`
	Context         *int   `json:"context,omitempty" jsonschema:"description=Lines of context around matches (content mode)"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" jsonschema:"description=Case insensitive search"`
	HeadLimit       int    `json:"head_limit,omitempty" jsonschema:"description=Only return the first N lines of output"`
}

// GrepTool searches file contents with ripgrep.
type GrepTool struct{}

var _ kaya.Tool[GrepInput] = (*GrepTool)(nil)

func (t *GrepTool) Name() string        { return "Grep" }
func (t *GrepTool) Description() string { return "Search file contents with a regular expression (ripgrep syntax)" }

func (t *GrepTool) Execute(ctx context.Context, input GrepInput) (*kaya.ToolResult, error) {
	if input.Pattern == "" {
		return kaya.ErrorResult("pattern is required"), nil
	}

	rg, err := exec.LookPath("rg")
	if err != nil {
		return kaya.ErrorResult("ripgrep (rg) is not installed"), nil
	}

	cmd := exec.CommandContext(ctx, rg, buildRgArgs(input)...)
	applyExecContext(ctx, cmd)

	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return kaya.TextResult("No matches found."), nil
		}
		if errors.As(err, &exitErr) {
			return kaya.ErrorResult(fmt.Sprintf("rg error: %s", out)), nil
		}
		return kaya.ErrorResult(fmt.Sprintf("failed to run rg: %s", err)), nil
	}

	text := string(out)
	if input.HeadLimit > 0 {
		lines := strings.SplitAfter(text, "\n")
		if len(lines) > input.HeadLimit {
			text = strings.Join(lines[:input.HeadLimit], "")
		}
	}
	return kaya.TextResult(truncate(text, maxOutputBytes)), nil
}

func buildRgArgs(input GrepInput) []string {
	var args []string

	switch input.OutputMode {
	case "content":
		args = append(args, "-n")
		if input.Context != nil && *input.Context > 0 {
			args = append(args, "-C", strconv.Itoa(*input.Context))
		}
	case "count":
		args = append(args, "-c")
	default:
		args = append(args, "-l")
	}

	if input.CaseInsensitive {
		args = append(args, "-i")
	}
	if input.Glob != "" {
		args = append(args, "--glob", input.Glob)
	}
	if input.Type != "" {
		args = append(args, "--type", input.Type)
	}

	args = append(args, "-e", input.Pattern)
	if input.Path != "" {
		args = append(args, input.Path)
	}
	return args
}
