package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportTools = []string{"Read", "Write", "Edit", "MultiEdit", "Grep", "Glob", "TodoWrite", "WebSearch", "WebFetch"}

func TestWrite_ReportLandsUnderWorkDir(t *testing.T) {
	set := agentTools(t, reportTools...)
	ctx, dir := workspace(t)
	report := "# Go 1.25\n\nSee [release notes](https://go.dev/doc/go1.25).\n"

	result := invoke(t, ctx, set, "Write", WriteInput{FilePath: "docs/go125/report.md", Content: report})
	require.False(t, result.IsError, result.Text())

	path := filepath.Join(dir, "docs", "go125", "report.md")
	assert.Equal(t, fmt.Sprintf("Wrote %d bytes to %s", len(report), path), result.Text())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, report, string(data))
}

func TestWrite_ReplacesDraft(t *testing.T) {
	set := agentTools(t, reportTools...)
	ctx, dir := workspace(t)
	path := filepath.Join(dir, "docs", "report.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("draft with a much longer body than the final"), 0o644))

	result := invoke(t, ctx, set, "Write", WriteInput{FilePath: path, Content: "final"})
	require.False(t, result.IsError, result.Text())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "final", string(data))
}

func TestWrite_MissingPath(t *testing.T) {
	set := agentTools(t, "Write")
	ctx, _ := workspace(t)

	result := invoke(t, ctx, set, "Write", WriteInput{Content: "orphan"})
	assert.True(t, result.IsError)
	assert.Equal(t, "file_path is required", result.Text())
}

func TestWrite_ParentIsAFile(t *testing.T) {
	set := agentTools(t, "Write")
	ctx, dir := workspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs"), []byte("not a dir"), 0o644))

	result := invoke(t, ctx, set, "Write", WriteInput{FilePath: "docs/report.md", Content: "x"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "failed to create directory")
}
