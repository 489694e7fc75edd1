package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"

	"github.com/armatrix/kaya"
)

const (
	defaultBashTimeout = 2 * time.Minute
	maxBashTimeout     = 10 * time.Minute
	maxOutputBytes     = 30_000
)

// BashInput defines the input for the Bash tool.
type BashInput struct {
	Command         string `json:"command" jsonschema:"required,description=The command to execute"`
	Description     string `json:"description,omitempty" jsonschema:"description=Short description of what this command does"`
	Timeout         *int   `json:"timeout,omitempty" jsonschema:"description=Timeout in milliseconds (max 600000)"`
	RunInBackground bool   `json:"run_in_background,omitempty" jsonschema:"description=Run the command in the background and poll it with BashOutput"`
}

// BashTool executes shell commands. Background commands are handed to Shells;
// without a manager they are rejected.
type BashTool struct {
	Shells *ShellManager
}

var _ kaya.Tool[BashInput] = (*BashTool)(nil)

func (t *BashTool) Name() string { return "Bash" }
func (t *BashTool) Description() string {
	return "Execute a bash command in the working directory. Set run_in_background for long-running commands."
}

func (t *BashTool) Execute(ctx context.Context, input BashInput) (*kaya.ToolResult, error) {
	if input.Command == "" {
		return kaya.ErrorResult("command is required"), nil
	}

	if input.RunInBackground {
		if t.Shells == nil {
			return kaya.ErrorResult("background execution is not available"), nil
		}
		id, err := t.Shells.Start(input.Command, kaya.ContextWorkDir(ctx))
		if err != nil {
			return kaya.ErrorResult(err.Error()), nil
		}
		return kaya.TextResult(fmt.Sprintf("Command running in background with ID: %s", id)), nil
	}

	timeout := bashTimeout(input.Timeout)
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "bash", "-c", input.Command)
	applyExecContext(ctx, cmd)

	output, waitErr := runPTY(cmd)
	if errors.Is(waitErr, errNoPTY) {
		cmd = exec.CommandContext(cmdCtx, "bash", "-c", input.Command)
		applyExecContext(ctx, cmd)
		var out []byte
		out, waitErr = cmd.CombinedOutput()
		output = string(out)
	}

	if cmdCtx.Err() == context.DeadlineExceeded {
		return kaya.ErrorResult(fmt.Sprintf("command timed out after %s\n%s", timeout, truncate(output, maxOutputBytes))), nil
	}
	return commandResult(truncate(output, maxOutputBytes), waitErr), nil
}

var errNoPTY = errors.New("pty unavailable")

// runPTY runs cmd attached to a pseudo-terminal so programs that check for a
// tty produce their interactive output.
func runPTY(cmd *exec.Cmd) (string, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", errNoPTY
	}
	defer ptmx.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, ptmx) // EIO once the child exits
	return buf.String(), cmd.Wait()
}

func bashTimeout(ms *int) time.Duration {
	if ms == nil || *ms <= 0 {
		return defaultBashTimeout
	}
	return min(time.Duration(*ms)*time.Millisecond, maxBashTimeout)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func commandResult(output string, err error) *kaya.ToolResult {
	code := exitCode(err)
	result := kaya.TextResult(output)
	result.Metadata = map[string]any{"exit_code": code}
	result.IsError = code != 0
	return result
}
