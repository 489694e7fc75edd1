package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/armatrix/kaya"
)

// WriteInput defines the input for the Write tool.
type WriteInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Path of the file to write"`
	Content  string `json:"content" jsonschema:"required,description=The full content to write"`
}

// WriteTool writes content to a file, creating parent directories if needed.
type WriteTool struct{}

var _ kaya.Tool[WriteInput] = (*WriteTool)(nil)

func (t *WriteTool) Name() string        { return "Write" }
func (t *WriteTool) Description() string { return "Write a file to the local filesystem, replacing it if it exists" }

func (t *WriteTool) Execute(ctx context.Context, input WriteInput) (*kaya.ToolResult, error) {
	if input.FilePath == "" {
		return kaya.ErrorResult("file_path is required"), nil
	}
	path := resolvePath(ctx, input.FilePath)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kaya.ErrorResult(fmt.Sprintf("failed to create directory: %s", err)), nil
	}
	if err := os.WriteFile(path, []byte(input.Content), 0o644); err != nil {
		return kaya.ErrorResult(fmt.Sprintf("failed to write file: %s", err)), nil
	}
	return kaya.TextResult(fmt.Sprintf("Wrote %d bytes to %s", len(input.Content), path)), nil
}
