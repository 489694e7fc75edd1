package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sony/gobreaker/v2"

	"github.com/armatrix/kaya"
)

// Manager supervises one MCP server. A server that fails to start leaves the
// manager down: its declared tools stay registered but resolve as unknown.
type Manager struct {
	name         string
	cfg          ServerConfig
	dial         Dialer
	logger       *slog.Logger
	callTimeout  time.Duration
	startTimeout time.Duration
	maxFailures  uint32
	openTimeout  time.Duration
	breaker      *gobreaker.CircuitBreaker[*mcp.CallToolResult]

	mu     sync.RWMutex
	client Client
	tools  map[string]mcp.Tool
	closed bool
}

var _ kaya.Releaser = (*Manager)(nil)

// New creates a manager for the server called name. Nothing is launched
// until Start.
func New(name string, cfg ServerConfig, opts ...Option) *Manager {
	m := &Manager{
		name:         name,
		cfg:          cfg,
		dial:         Dial,
		logger:       slog.New(slog.DiscardHandler),
		callTimeout:  defaultCallTimeout,
		startTimeout: defaultStartTimeout,
		maxFailures:  defaultMaxFailures,
		openTimeout:  defaultOpenTimeout,
		tools:        make(map[string]mcp.Tool),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("bridge", name)
	m.breaker = gobreaker.NewCircuitBreaker[*mcp.CallToolResult](gobreaker.Settings{
		Name:        "bridge:" + name,
		MaxRequests: 1,
		Timeout:     m.openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= m.maxFailures
		},
		OnStateChange: func(breaker string, from, to gobreaker.State) {
			m.logger.Warn("bridge circuit state change", "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return m
}

// Name returns the server name used in capability names.
func (m *Manager) Name() string { return m.name }

// Start launches the server, performs the MCP handshake and discovers its
// tools. Any failure leaves the manager down and is returned wrapped in
// kaya.ErrBridgeUnavailable; callers log it and carry on.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: %s: closed", kaya.ErrBridgeUnavailable, m.name)
	}
	if m.client != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.startTimeout)
	defer cancel()

	started := time.Now()
	client, err := m.dial(ctx, m.cfg, m.logger)
	if err != nil {
		return m.startFailed(err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "kaya", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, req); err != nil {
		_ = client.Close()
		return m.startFailed(fmt.Errorf("initialize: %w", err))
	}

	list, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return m.startFailed(fmt.Errorf("list tools: %w", err))
	}
	for _, t := range list.Tools {
		m.tools[t.Name] = t
	}
	m.client = client

	m.logger.Info("bridge started",
		"transport", m.cfg.Resolved(),
		"tools", len(list.Tools),
		"duration", time.Since(started))
	for _, name := range m.cfg.Tools {
		if _, ok := m.tools[name]; !ok {
			m.logger.Warn("declared bridge tool not offered by server", "tool", name)
		}
	}
	return nil
}

func (m *Manager) startFailed(err error) error {
	m.logger.Warn("bridge unavailable", "error", err)
	return fmt.Errorf("%w: %s: %w", kaya.ErrBridgeUnavailable, m.name, err)
}

// Up reports whether the server is running.
func (m *Manager) Up() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Tools returns the bare names of declared and discovered tools, sorted.
func (m *Manager) Tools() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := slices.Clone(m.cfg.Tools)
	for name := range m.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Register adds a remote handle for every declared and discovered tool.
// Call it after Start, whether or not Start succeeded.
func (m *Manager) Register(reg *kaya.Registry) error {
	var errs []error
	for _, tool := range m.Tools() {
		name := ToolName(m.name, tool)
		if reg.Has(name) {
			continue
		}
		errs = append(errs, reg.Register(name, &remoteHandle{m: m, tool: tool}))
	}
	return errors.Join(errs...)
}

// Close releases the server. It is safe to call more than once and on a
// manager that never started.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	client := m.client
	m.client = nil
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		m.logger.Warn("bridge close failed", "error", err)
		return fmt.Errorf("close bridge %s: %w", m.name, err)
	}
	m.logger.Info("bridge released")
	return nil
}

func (m *Manager) lookup(tool string) (mcp.Tool, Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tools[tool]
	return t, m.client, ok && m.client != nil
}

func (m *Manager) call(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	_, client, ok := m.lookup(tool)
	if !ok {
		return nil, fmt.Errorf("%w: %s", kaya.ErrBridgeUnavailable, m.name)
	}

	res, err := m.breaker.Execute(func() (*mcp.CallToolResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		defer cancel()

		req := mcp.CallToolRequest{}
		req.Params.Name = tool
		req.Params.Arguments = args
		return client.CallTool(callCtx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %w", kaya.ErrBridgeUnavailable, m.name, err)
	}
	return res, err
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}
