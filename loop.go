package kaya

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
)

// ExitCommand is the input line that ends a Loop.
const ExitCommand = "exit"

// Renderer displays a turn's events to the user.
type Renderer interface {
	// Prompt is called whenever the loop waits for a new line.
	Prompt()
	// Render is called for every event, in arrival order.
	Render(e Event)
	// TurnDone is called once per turn with the error that ended it, if any.
	TurnDone(err error)
}

// Loop reads line-oriented input and drives a Session: every line except
// "exit" becomes a root turn.
type Loop struct {
	session  *Session
	in       io.Reader
	renderer Renderer
	logger   *slog.Logger

	lines chan string
	queue []string
	eof   bool
}

// NewLoop creates a loop reading from in and rendering to r.
func NewLoop(s *Session, in io.Reader, r Renderer, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{session: s, in: in, renderer: r, logger: logger}
}

// Run blocks until "exit", end of input, or ctx cancellation, then closes
// the session. Lines typed while a turn is streaming are queued, except
// "exit", which tears the session down immediately.
func (l *Loop) Run(ctx context.Context) error {
	l.lines = make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go l.read(ctx, stop)

	for {
		line, ok := l.next(ctx)
		if !ok || line == ExitCommand {
			break
		}
		if l.turn(ctx, line) {
			break
		}
	}
	return l.session.Close()
}

// read forwards input lines until EOF, ctx is done, or stop is closed.
func (l *Loop) read(ctx context.Context, stop <-chan struct{}) {
	defer close(l.lines)
	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case l.lines <- scanner.Text():
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		l.logger.Warn("reading input", "error", err)
	}
}

// next returns the next non-blank line, queued lines first.
func (l *Loop) next(ctx context.Context) (string, bool) {
	for {
		if len(l.queue) > 0 {
			line := l.queue[0]
			l.queue = l.queue[1:]
			return line, true
		}
		if l.eof {
			return "", false
		}
		l.renderer.Prompt()
		select {
		case <-ctx.Done():
			return "", false
		case raw, ok := <-l.lines:
			if !ok {
				l.eof = true
				continue
			}
			if line := strings.TrimSpace(raw); line != "" {
				return line, true
			}
		}
	}
}

// turn runs one root turn and reports whether the loop must stop.
func (l *Loop) turn(ctx context.Context, line string) bool {
	stream := l.session.Query(ctx, line)
	events := make(chan Event)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		defer close(events)
		for stream.Next() {
			select {
			case events <- stream.Current():
			case <-quit:
				for stream.Next() {
				}
				return
			}
		}
	}()

	lines := l.lines
	if l.eof {
		lines = nil
	}
	for {
		select {
		case e, ok := <-events:
			if !ok {
				l.renderer.TurnDone(stream.Err())
				return false
			}
			l.renderer.Render(e)
		case raw, ok := <-lines:
			if !ok {
				l.eof = true
				lines = nil
				continue
			}
			line := strings.TrimSpace(raw)
			if line == ExitCommand {
				return true
			}
			if line != "" {
				l.queue = append(l.queue, line)
			}
		case <-ctx.Done():
			return true
		}
	}
}
