package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/armatrix/kaya"
)

// MultiEditInput defines the input for the MultiEdit tool.
type MultiEditInput struct {
	FilePath string   `json:"file_path" jsonschema:"required,description=Path of the file to modify"`
	Edits    []EditOp `json:"edits" jsonschema:"required,description=Edits applied in order; each sees the result of the previous one"`
}

// MultiEditTool applies several replacements to one file atomically: if any
// edit fails the file is left untouched.
type MultiEditTool struct{}

var _ kaya.Tool[MultiEditInput] = (*MultiEditTool)(nil)

func (t *MultiEditTool) Name() string { return "MultiEdit" }
func (t *MultiEditTool) Description() string {
	return "Apply several exact string replacements to one file in a single all-or-nothing operation"
}

func (t *MultiEditTool) Execute(ctx context.Context, input MultiEditInput) (*kaya.ToolResult, error) {
	if input.FilePath == "" {
		return kaya.ErrorResult("file_path is required"), nil
	}
	if len(input.Edits) == 0 {
		return kaya.ErrorResult("edits must contain at least one edit"), nil
	}
	path := resolvePath(ctx, input.FilePath)

	data, err := os.ReadFile(path)
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("failed to read file: %s", err)), nil
	}

	content, total := string(data), 0
	for i, op := range input.Edits {
		var n int
		content, n, err = applyEdit(content, op)
		if err != nil {
			return kaya.ErrorResult(fmt.Sprintf("edit %d: %s", i+1, err)), nil
		}
		total += n
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return kaya.ErrorResult(fmt.Sprintf("failed to write file: %s", err)), nil
	}
	return kaya.TextResult(fmt.Sprintf("Applied %d edit(s), %d replacement(s) in %s", len(input.Edits), total, path)), nil
}
