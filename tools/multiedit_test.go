package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiEditTool_AppliesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("a := 1\nb := a\n"), 0o644))

	result, err := (&MultiEditTool{}).Execute(context.Background(), MultiEditInput{
		FilePath: path,
		Edits: []EditOp{
			{OldString: "a := 1", NewString: "x := 1"},
			{OldString: "b := a", NewString: "b := x"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError, result.Text())
	assert.Contains(t, result.Text(), "Applied 2 edit(s)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x := 1\nb := x\n", string(data))
}

func TestMultiEditTool_LaterEditSeesEarlierResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	result, err := (&MultiEditTool{}).Execute(context.Background(), MultiEditInput{
		FilePath: path,
		Edits: []EditOp{
			{OldString: "one", NewString: "two"},
			{OldString: "two", NewString: "three"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "three", string(data))
}

func TestMultiEditTool_FailureLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o644))

	result, err := (&MultiEditTool{}).Execute(context.Background(), MultiEditInput{
		FilePath: path,
		Edits: []EditOp{
			{OldString: "keep", NewString: "lose"},
			{OldString: "missing", NewString: "x"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "edit 2")

	data, _ := os.ReadFile(path)
	assert.Equal(t, "keep me", string(data))
}

func TestMultiEditTool_NoEdits(t *testing.T) {
	result, err := (&MultiEditTool{}).Execute(context.Background(), MultiEditInput{FilePath: "x"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
