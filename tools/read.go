package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/armatrix/kaya"
)

const (
	defaultReadLimit = 2000
	maxLineLength    = 2000
	lineSuffix       = "... [truncated]"
)

// ReadInput defines the input for the Read tool.
type ReadInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path of the file to read, absolute or relative to the working directory"`
	Offset   *int   `json:"offset,omitempty" jsonschema:"description=The line number to start reading from (1-based)"`
	Limit    *int   `json:"limit,omitempty" jsonschema:"description=The number of lines to read"`
}

// ReadTool reads a file and returns it with line numbers.
type ReadTool struct{}

var _ kaya.Tool[ReadInput] = (*ReadTool)(nil)

func (t *ReadTool) Name() string { return "Read" }
func (t *ReadTool) Description() string {
	return "Read a file from the local filesystem. Lines are numbered from 1; use offset and limit for large files."
}

func (t *ReadTool) Execute(ctx context.Context, input ReadInput) (*kaya.ToolResult, error) {
	if input.FilePath == "" {
		return kaya.ErrorResult("file_path is required"), nil
	}
	path := resolvePath(ctx, input.FilePath)

	info, err := os.Stat(path)
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("failed to open file: %s", err)), nil
	}
	if info.IsDir() {
		return kaya.ErrorResult(fmt.Sprintf("%s is a directory; use Glob to list it", path)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("failed to open file: %s", err)), nil
	}
	defer f.Close()

	offset, limit := 1, defaultReadLimit
	if input.Offset != nil && *input.Offset > 0 {
		offset = *input.Offset
	}
	if input.Limit != nil && *input.Limit > 0 {
		limit = *input.Limit
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var b strings.Builder
	n, written := 0, 0
	for scanner.Scan() && written < limit {
		n++
		if n < offset {
			continue
		}
		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength-len(lineSuffix)] + lineSuffix
		}
		fmt.Fprintf(&b, "%6d\t%s\n", n, line)
		written++
	}
	if err := scanner.Err(); err != nil {
		return kaya.ErrorResult(fmt.Sprintf("error reading file: %s", err)), nil
	}

	if b.Len() == 0 {
		if n == 0 {
			return kaya.TextResult("(empty file)"), nil
		}
		return kaya.TextResult(fmt.Sprintf("(no lines at offset %d; file has %d lines)", offset, n)), nil
	}
	return kaya.TextResult(b.String()), nil
}
