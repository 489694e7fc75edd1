package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/armatrix/kaya"
)

// ErrUnknownShell is returned for a background shell ID that was never
// started or has already been removed.
var ErrUnknownShell = errors.New("tools: unknown background shell")

const shellWaitDelay = 2 * time.Second

// ShellStatus is the lifecycle state of a background shell.
type ShellStatus string

const (
	ShellRunning   ShellStatus = "running"
	ShellCompleted ShellStatus = "completed"
	ShellFailed    ShellStatus = "failed"
	ShellKilled    ShellStatus = "killed"
)

// ShellManager owns commands started with run_in_background. It outlives the
// tool call that started them and must be closed when the session ends.
type ShellManager struct {
	mu     sync.Mutex
	shells map[string]*backgroundShell
	closed bool
	logger *slog.Logger
}

// NewShellManager creates an empty manager. A nil logger discards.
func NewShellManager(logger *slog.Logger) *ShellManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ShellManager{shells: make(map[string]*backgroundShell), logger: logger}
}

type backgroundShell struct {
	id      string
	command string
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	output bytes.Buffer
	read   int
	status ShellStatus
	code   int
}

func (s *backgroundShell) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.Write(p)
}

// Start launches command in dir and returns its shell ID.
func (m *ShellManager) Start(command, dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", fmt.Errorf("shell manager closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = dir
	cmd.WaitDelay = shellWaitDelay

	sh := &backgroundShell{
		id:      kaya.GenerateID("shell"),
		command: command,
		cmd:     cmd,
		cancel:  cancel,
		done:    make(chan struct{}),
		status:  ShellRunning,
	}
	cmd.Stdout = sh
	cmd.Stderr = sh

	if err := cmd.Start(); err != nil {
		cancel()
		return "", fmt.Errorf("start background command: %w", err)
	}
	m.shells[sh.id] = sh
	m.logger.Debug("background shell started", "shell_id", sh.id, "command", command)

	go func() {
		err := cmd.Wait()
		code := exitCode(err)
		sh.mu.Lock()
		sh.code = code
		switch {
		case sh.status == ShellKilled:
		case err != nil:
			sh.status = ShellFailed
		default:
			sh.status = ShellCompleted
		}
		sh.mu.Unlock()
		cancel()
		close(sh.done)
		m.logger.Debug("background shell exited", "shell_id", sh.id, "exit_code", code)
	}()
	return sh.id, nil
}

// ShellOutput is the result of polling a background shell.
type ShellOutput struct {
	Output   string
	Status   ShellStatus
	ExitCode int
}

// Output returns what the shell printed since the previous call. With a
// filter, only matching lines are returned; the rest are still consumed.
func (m *ShellManager) Output(id string, filter *regexp.Regexp) (ShellOutput, error) {
	sh, err := m.get(id)
	if err != nil {
		return ShellOutput{}, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	fresh := sh.output.String()[sh.read:]
	sh.read = sh.output.Len()

	if filter != nil {
		var kept []string
		for _, line := range strings.Split(fresh, "\n") {
			if filter.MatchString(line) {
				kept = append(kept, line)
			}
		}
		fresh = strings.Join(kept, "\n")
	}
	return ShellOutput{Output: fresh, Status: sh.status, ExitCode: sh.code}, nil
}

// Kill stops a running shell and waits for it to exit.
func (m *ShellManager) Kill(id string) error {
	sh, err := m.get(id)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	running := sh.status == ShellRunning
	if running {
		sh.status = ShellKilled
	}
	sh.mu.Unlock()
	if !running {
		return nil
	}
	sh.cancel()
	<-sh.done
	return nil
}

// Running returns the IDs of shells that have not exited.
func (m *ShellManager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, sh := range m.shells {
		select {
		case <-sh.done:
		default:
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Close kills every running shell. It is idempotent.
func (m *ShellManager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ids := make([]string, 0, len(m.shells))
	for id := range m.shells {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Kill(id)
	}
	if len(ids) > 0 {
		m.logger.Info("background shells stopped", "count", len(ids))
	}
	return nil
}

func (m *ShellManager) get(id string) (*backgroundShell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.shells[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownShell, id)
	}
	return sh, nil
}

// BashOutputInput defines the input for the BashOutput tool.
type BashOutputInput struct {
	BashID string `json:"bash_id" jsonschema:"required,description=The ID returned when the command was started"`
	Filter string `json:"filter,omitempty" jsonschema:"description=Regular expression; only matching lines are returned"`
}

// BashOutputTool reads new output from a background shell.
type BashOutputTool struct {
	Shells *ShellManager
}

var _ kaya.Tool[BashOutputInput] = (*BashOutputTool)(nil)

func (t *BashOutputTool) Name() string { return "BashOutput" }
func (t *BashOutputTool) Description() string {
	return "Retrieve output printed by a background shell since the last check"
}

func (t *BashOutputTool) Execute(_ context.Context, input BashOutputInput) (*kaya.ToolResult, error) {
	var filter *regexp.Regexp
	if input.Filter != "" {
		re, err := regexp.Compile(input.Filter)
		if err != nil {
			return kaya.ErrorResult(fmt.Sprintf("invalid filter: %s", err)), nil
		}
		filter = re
	}

	out, err := t.Shells.Output(input.BashID, filter)
	if err != nil {
		return kaya.ErrorResult(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<status>%s</status>\n", out.Status)
	if out.Status != ShellRunning {
		fmt.Fprintf(&b, "<exit_code>%d</exit_code>\n", out.ExitCode)
	}
	if out.Output != "" {
		fmt.Fprintf(&b, "<output>\n%s\n</output>", truncate(strings.TrimRight(out.Output, "\n"), maxOutputBytes))
	}
	return kaya.TextResult(b.String()), nil
}

// KillShellInput defines the input for the KillShell tool.
type KillShellInput struct {
	ShellID string `json:"shell_id" jsonschema:"required,description=The ID of the background shell to kill"`
}

// KillShellTool stops a background shell.
type KillShellTool struct {
	Shells *ShellManager
}

var _ kaya.Tool[KillShellInput] = (*KillShellTool)(nil)

func (t *KillShellTool) Name() string        { return "KillShell" }
func (t *KillShellTool) Description() string { return "Kill a background shell by its ID" }

func (t *KillShellTool) Execute(_ context.Context, input KillShellInput) (*kaya.ToolResult, error) {
	if err := t.Shells.Kill(input.ShellID); err != nil {
		return kaya.ErrorResult(err.Error()), nil
	}
	return kaya.TextResult(fmt.Sprintf("Killed shell %s", input.ShellID)), nil
}
