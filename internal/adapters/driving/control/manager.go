// Package control owns the persistent websocket connection to the remote
// coordinator: bounded connect retries with fixed backoff, the blocking
// command listen loop, and outbound response writes. Inbound frames drive
// the agent; the adapter itself holds no business logic.
package control

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
	"github.com/custodia-labs/shelter-agent/internal/logger"
)

// Default retry policy. Exhausting the budget permanently disables the
// channel and, with it, the agent.
const (
	DefaultMaxRetries = 10
	DefaultRetryDelay = 30 * time.Second
)

// Config configures the connection manager.
type Config struct {
	// Host is the coordinator host[:port]. A full ws:// or wss:// URL is
	// also accepted, which tests use to point at a local server.
	Host string

	// AgentID is appended to the connect URL as the connection id.
	AgentID string

	// MaxRetries bounds consecutive failed connect attempts.
	// Zero means DefaultMaxRetries.
	MaxRetries int

	// RetryDelay is the fixed backoff between attempts.
	// Zero means DefaultRetryDelay.
	RetryDelay time.Duration
}

// Manager implements the reconnecting control channel. It satisfies
// driven.ChannelDriver: the outbound send half plus the
// connect-retry-listen loop.
type Manager struct {
	url        string
	maxRetries int
	retryDelay time.Duration
	dialer     *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	active   bool
	disabled bool
	attempts int
}

var _ driven.ChannelDriver = (*Manager)(nil)

// NewManager creates a connection manager for the coordinator endpoint.
func NewManager(cfg Config) *Manager {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return &Manager{
		url:        connectURL(cfg.Host, cfg.AgentID),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
			// The coordinator deployment still runs on self-signed
			// certificates; certificate validation is knowingly skipped.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		},
	}
}

// connectURL builds the websocket URL. Hosts without a scheme connect
// over wss.
func connectURL(host, agentID string) string {
	if !strings.Contains(host, "://") {
		host = "wss://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return host
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("connectionId", agentID)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnectWithRetry attempts to connect, announcing via onConnected and
// then listening for commands until the connection drops. A dropped
// connection resets the attempt counter and returns true so the caller
// can reconnect; exhausting MaxRetries consecutive failures disables the
// channel permanently and returns false.
func (m *Manager) ConnectWithRetry(ctx context.Context, onConnected driven.ConnectedHandler, onCommand driven.CommandHandler) bool {
	for {
		m.mu.Lock()
		if m.attempts >= m.maxRetries {
			m.disabled = true
			m.mu.Unlock()
			return false
		}
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		logger.Infof("control: connection attempt %d of %d", attempt, m.maxRetries)

		err := m.connectAndListen(ctx, onConnected, onCommand)
		if err == nil {
			// Connection was established and later closed; let the
			// caller decide whether to reconnect.
			return true
		}
		if ctx.Err() != nil {
			return true
		}

		logger.Errorf("control: connection attempt %d failed: %v", attempt, err)
		m.setActive(false)

		m.mu.Lock()
		exhausted := m.attempts >= m.maxRetries
		if exhausted {
			m.disabled = true
		}
		m.mu.Unlock()
		if exhausted {
			return false
		}

		logger.Infof("control: waiting %s before next attempt", m.retryDelay)
		select {
		case <-ctx.Done():
			return true
		case <-time.After(m.retryDelay):
		}
	}
}

// connectAndListen dials, announces, and blocks reading commands.
// Returns nil when an established connection closes, an error when the
// dial or announcement fails.
func (m *Manager) connectAndListen(ctx context.Context, onConnected driven.ConnectedHandler, onCommand driven.CommandHandler) error {
	logger.Debugf("control: dialing %s", m.url)

	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dialing coordinator: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.active = true
	m.attempts = 0 // Reset counter on successful connection
	m.mu.Unlock()

	logger.Infof("control: connection established")

	defer func() {
		m.setActive(false)
		conn.Close()
	}()

	if onConnected != nil {
		if err := onConnected(ctx); err != nil {
			return fmt.Errorf("announcing agent: %w", err)
		}
	}

	m.listen(ctx, conn, onCommand)
	return nil
}

// listen decodes inbound frames until the connection drops. Malformed
// frames are logged and dropped, never fatal.
func (m *Manager) listen(ctx context.Context, conn *websocket.Conn, onCommand driven.CommandHandler) {
	logger.Infof("control: listening for commands")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Warnf("control: connection closed: %v", err)
			return
		}

		var cmd domain.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			logger.Errorf("control: dropping invalid frame: %v", err)
			continue
		}

		logger.Debugf("control: received command %q", cmd.Command)
		if onCommand != nil {
			onCommand(ctx, cmd)
		}
	}
}

// Send serialises a response and writes it to the open channel.
func (m *Manager) Send(_ context.Context, resp domain.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil || !m.active {
		return domain.ErrChannelInactive
	}
	if err := m.conn.WriteJSON(resp); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	logger.Debugf("control: sent %q response", resp.Command)
	return nil
}

// Active reports whether a connection is currently open.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Enabled reports whether the channel may still (re)connect.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disabled
}

func (m *Manager) setActive(active bool) {
	m.mu.Lock()
	m.active = active
	m.mu.Unlock()
}
