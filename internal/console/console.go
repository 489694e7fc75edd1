// Package console renders a kaya session on a terminal.
package console

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/armatrix/kaya"
)

const maxToolOutput = 400

// Options controls what the renderer shows.
type Options struct {
	NoColor bool
	// Verbose shows sub-agent text and tool output.
	Verbose bool
}

// Renderer prints events as they stream. Text from the root conversation is
// printed as it arrives; sub-agents are summarised by their status lines.
type Renderer struct {
	mu       sync.Mutex
	w        io.Writer
	rootID   string
	opts     Options
	midLine  bool
	you      *color.Color
	dim      *color.Color
	tool     *color.Color
	agent    *color.Color
	fail     *color.Color
	complete *color.Color
}

var _ kaya.Renderer = (*Renderer)(nil)

// New creates a renderer for the session whose root conversation is rootID.
func New(w io.Writer, rootID string, opts Options) *Renderer {
	r := &Renderer{
		w:        w,
		rootID:   rootID,
		opts:     opts,
		you:      color.New(color.FgCyan, color.Bold),
		dim:      color.New(color.FgHiBlack),
		tool:     color.New(color.FgYellow),
		agent:    color.New(color.FgMagenta),
		fail:     color.New(color.FgRed),
		complete: color.New(color.FgGreen),
	}
	if opts.NoColor {
		for _, c := range []*color.Color{r.you, r.dim, r.tool, r.agent, r.fail, r.complete} {
			c.DisableColor()
		}
	}
	return r
}

// Banner greets the user.
func (r *Renderer) Banner(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "Welcome to your personal assistant, Kaya!\n\nSelected model: %s\n", model)
	fmt.Fprintln(r.w, r.dim.Sprint(`Type "exit" to quit.`))
}

// Prompt implements kaya.Renderer.
func (r *Renderer) Prompt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	fmt.Fprintf(r.w, "\n%s ", r.you.Sprint("you ›"))
}

// Render implements kaya.Renderer.
func (r *Renderer) Render(e kaya.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contextID, agent := e.Source()
	root := contextID == r.rootID

	switch ev := e.(type) {
	case *kaya.TextDeltaEvent:
		if !root && !r.opts.Verbose {
			return
		}
		if !root && !r.midLine {
			fmt.Fprint(r.w, r.agent.Sprintf("[%s] ", agent))
		}
		fmt.Fprint(r.w, ev.Delta)
		r.midLine = !strings.HasSuffix(ev.Delta, "\n")

	case *kaya.ToolInvocationEvent:
		r.renderTool(agent, root, ev)

	case *kaya.StatusEvent:
		if root {
			return
		}
		r.endLine()
		switch ev.State {
		case kaya.TaskCompleted:
			fmt.Fprintln(r.w, r.complete.Sprintf("✓ %s", ev.Message))
		case kaya.TaskFailed, kaya.TaskCancelled:
			fmt.Fprintln(r.w, r.fail.Sprintf("✗ %s", ev.Message))
		default:
			fmt.Fprintln(r.w, r.agent.Sprintf("↳ %s", ev.Message))
		}

	case *kaya.CompletionEvent:
		if !root {
			return
		}
		r.endLine()
		fmt.Fprintln(r.w, r.dim.Sprintf("(%d turn(s), %d in / %d out tokens, $%s)",
			ev.NumTurns, ev.Usage.InputTokens, ev.Usage.OutputTokens, ev.Cost.StringFixed(4)))
	}
}

func (r *Renderer) renderTool(agent string, root bool, ev *kaya.ToolInvocationEvent) {
	label := ev.Name
	if !root {
		label = agent + ": " + ev.Name
	}
	switch ev.Phase {
	case kaya.ToolStarted:
		r.endLine()
		fmt.Fprintln(r.w, r.tool.Sprintf("→ %s", label))
	case kaya.ToolFinished:
		if ev.IsError {
			r.endLine()
			fmt.Fprintln(r.w, r.fail.Sprintf("  %s failed: %s", label, clip(ev.Output)))
			return
		}
		if r.opts.Verbose && ev.Output != "" {
			r.endLine()
			fmt.Fprintln(r.w, r.dim.Sprint(indent(clip(ev.Output))))
		}
	}
}

// TurnDone implements kaya.Renderer.
func (r *Renderer) TurnDone(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	if err == nil || errors.Is(err, kaya.ErrSessionClosed) {
		return
	}
	fmt.Fprintln(r.w, r.fail.Sprintf("error: %v", err))
}

func (r *Renderer) endLine() {
	if r.midLine {
		fmt.Fprintln(r.w)
		r.midLine = false
	}
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxToolOutput {
		return s
	}
	return s[:maxToolOutput] + "..."
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
