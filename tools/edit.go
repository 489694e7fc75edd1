package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/armatrix/kaya"
)

// EditInput defines the input for the Edit tool.
type EditInput struct {
	FilePath   string `json:"file_path" jsonschema:"required,description=Path of the file to modify"`
	OldString  string `json:"old_string" jsonschema:"required,description=The exact text to replace"`
	NewString  string `json:"new_string" jsonschema:"required,description=The replacement text"`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema:"description=Replace every occurrence instead of requiring a unique match"`
}

// EditTool performs exact string replacements in files.
type EditTool struct{}

var _ kaya.Tool[EditInput] = (*EditTool)(nil)

func (t *EditTool) Name() string        { return "Edit" }
func (t *EditTool) Description() string { return "Perform an exact string replacement in a file" }

func (t *EditTool) Execute(ctx context.Context, input EditInput) (*kaya.ToolResult, error) {
	if input.FilePath == "" {
		return kaya.ErrorResult("file_path is required"), nil
	}
	path := resolvePath(ctx, input.FilePath)

	data, err := os.ReadFile(path)
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("failed to read file: %s", err)), nil
	}

	content, n, err := applyEdit(string(data), EditOp{
		OldString:  input.OldString,
		NewString:  input.NewString,
		ReplaceAll: input.ReplaceAll,
	})
	if err != nil {
		return kaya.ErrorResult(err.Error()), nil
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return kaya.ErrorResult(fmt.Sprintf("failed to write file: %s", err)), nil
	}
	return kaya.TextResult(fmt.Sprintf("Replaced %d occurrence(s) in %s", n, path)), nil
}

// EditOp is a single replacement within a file.
type EditOp struct {
	OldString  string `json:"old_string" jsonschema:"required,description=The exact text to replace"`
	NewString  string `json:"new_string" jsonschema:"required,description=The replacement text"`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema:"description=Replace every occurrence"`
}

// applyEdit returns content with op applied and the number of replacements.
func applyEdit(content string, op EditOp) (string, int, error) {
	if op.OldString == "" {
		return "", 0, fmt.Errorf("old_string must not be empty")
	}
	if op.OldString == op.NewString {
		return "", 0, fmt.Errorf("old_string and new_string must be different")
	}
	count := strings.Count(content, op.OldString)
	switch {
	case count == 0:
		return "", 0, fmt.Errorf("old_string not found in file")
	case count > 1 && !op.ReplaceAll:
		return "", 0, fmt.Errorf("old_string appears %d times in file; use replace_all=true or add context to make it unique", count)
	}
	if op.ReplaceAll {
		return strings.ReplaceAll(content, op.OldString, op.NewString), count, nil
	}
	return strings.Replace(content, op.OldString, op.NewString, 1), 1, nil
}
