package tools

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/armatrix/kaya"
)

// resolvePath resolves a file path against the working directory from context.
// If the path is already absolute, it is returned as-is.
// If the context has no working directory, the path is returned as-is.
func resolvePath(ctx context.Context, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if dir := kaya.ContextWorkDir(ctx); dir != "" {
		return filepath.Join(dir, path)
	}
	return path
}

// applyExecContext runs cmd in the context's working directory, if any.
func applyExecContext(ctx context.Context, cmd *exec.Cmd) {
	if dir := kaya.ContextWorkDir(ctx); dir != "" {
		cmd.Dir = dir
	}
}

// truncate caps s at max bytes, marking the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... [output truncated]"
}
