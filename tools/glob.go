package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/armatrix/kaya"
)

const maxGlobResults = 500

// GlobInput defines the input for the Glob tool.
type GlobInput struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Glob pattern such as **/*.go"`
	Path    string `json:"path,omitempty" jsonschema:"description=Directory to search in; defaults to the working directory"`
}

// GlobTool lists files matching a doublestar pattern, newest first.
type GlobTool struct{}

var _ kaya.Tool[GlobInput] = (*GlobTool)(nil)

func (t *GlobTool) Name() string { return "Glob" }
func (t *GlobTool) Description() string {
	return "Find files by glob pattern (supports **). Results are sorted by modification time, newest first."
}

func (t *GlobTool) Execute(ctx context.Context, input GlobInput) (*kaya.ToolResult, error) {
	if input.Pattern == "" {
		return kaya.ErrorResult("pattern is required"), nil
	}
	if !doublestar.ValidatePattern(input.Pattern) {
		return kaya.ErrorResult(fmt.Sprintf("invalid glob pattern %q", input.Pattern)), nil
	}

	base := resolvePath(ctx, input.Path)
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return kaya.ErrorResult(fmt.Sprintf("failed to get working directory: %s", err)), nil
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("invalid path: %s", err)), nil
	}

	matches, err := doublestar.Glob(os.DirFS(base), input.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("glob error: %s", err)), nil
	}
	if len(matches) == 0 {
		return kaya.TextResult("No files matched the pattern."), nil
	}

	type entry struct {
		path    string
		modTime int64
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		full := filepath.Join(base, m)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: full, modTime: info.ModTime().UnixNano()})
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		switch {
		case a.modTime > b.modTime:
			return -1
		case a.modTime < b.modTime:
			return 1
		}
		return strings.Compare(a.path, b.path)
	})

	var b strings.Builder
	for i, e := range entries {
		if i == maxGlobResults {
			fmt.Fprintf(&b, "... %d more files not shown\n", len(entries)-maxGlobResults)
			break
		}
		b.WriteString(e.path)
		b.WriteByte('\n')
	}
	return kaya.TextResult(b.String()), nil
}
