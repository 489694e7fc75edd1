package bridge

import (
	"log/slog"
	"time"
)

const (
	defaultCallTimeout  = 60 * time.Second
	defaultStartTimeout = 60 * time.Second
	defaultMaxFailures  = 3
	defaultOpenTimeout  = 30 * time.Second
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithDialer replaces the mcp-go dialer, e.g. with an in-memory client in tests.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithCallTimeout bounds every remote tool call.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) { m.callTimeout = d }
}

// WithStartTimeout bounds launch, handshake and tool discovery.
func WithStartTimeout(d time.Duration) Option {
	return func(m *Manager) { m.startTimeout = d }
}

// WithBreaker sets how many consecutive call failures open the circuit and
// how long it stays open before a trial call is let through.
func WithBreaker(maxFailures uint32, openFor time.Duration) Option {
	return func(m *Manager) {
		m.maxFailures = maxFailures
		m.openTimeout = openFor
	}
}
