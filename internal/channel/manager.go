package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ppastore/dayflow/internal/protocol"
)

// State describes the channel lifecycle. It is driven solely by
// connect/disconnect events, never by application traffic.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

const (
	defaultRetryDelay  = time.Second
	defaultMaxAttempts = 5
	emitWriteTimeout   = 2 * time.Second
	handshakeTimeout   = 4 * time.Second
)

var ErrNotConnected = errors.New("channel not connected")

// Handler receives decoded hub events in per-connection arrival order.
type Handler func(evt any)

// StateHandler observes channel state transitions.
type StateHandler func(state State)

type Config struct {
	URL         string
	RetryDelay  time.Duration
	MaxAttempts int
}

// Manager owns the single persistent duplex connection to the hub. Every
// reconnect is a fresh connection with no session resumption; anything in
// flight at disconnect time is lost and must be re-derived by consumers.
type Manager struct {
	url         string
	retryDelay  time.Duration
	maxAttempts int
	dialer      websocket.Dialer

	handler      Handler
	stateHandler StateHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	running bool
	closed  bool
	runCtx  context.Context
}

func NewManager(cfg Config) *Manager {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Manager{
		url:         cfg.URL,
		retryDelay:  cfg.RetryDelay,
		maxAttempts: cfg.MaxAttempts,
		state:       StateDisconnected,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// OnEvent registers the single inbound dispatch handler. Must be set before Start.
func (m *Manager) OnEvent(h Handler) {
	m.handler = h
}

// OnStateChange registers a state transition observer. Must be set before Start.
func (m *Manager) OnStateChange(h StateHandler) {
	m.stateHandler = h
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Start begins connecting in the background. After the bounded attempt budget
// is exhausted the manager stays disconnected until Retry is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running || m.closed {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.runCtx = ctx
	m.mu.Unlock()

	go m.run(ctx)
}

// Retry restarts the connect loop after the attempt budget was exhausted.
// It is a no-op unless the channel is fully disconnected.
func (m *Manager) Retry() {
	m.mu.Lock()
	if m.running || m.closed || m.state != StateDisconnected || m.runCtx == nil {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx := m.runCtx
	m.mu.Unlock()

	go m.run(ctx)
}

// Emit marshals the event and writes it to the current connection.
func (m *Manager) Emit(evt any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	_ = conn.SetWriteDeadline(time.Now().Add(emitWriteTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	if err := conn.WriteJSON(evt); err != nil {
		return fmt.Errorf("channel write: %w", err)
	}
	return nil
}

// Close tears the connection down permanently.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.setState(StateDisconnected)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.setState(StateConnecting)
	for {
		conn, err := m.dial(ctx)
		if err != nil {
			m.setState(StateDisconnected)
			return
		}

		connID := uuid.NewString()[:8]
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			_ = conn.Close()
			m.setState(StateDisconnected)
			return
		}
		m.conn = conn
		m.mu.Unlock()

		m.setState(StateConnected)
		log.Printf("channel: connected to %s (conn=%s)", m.url, connID)

		m.readLoop(conn)

		m.mu.Lock()
		m.conn = nil
		closed := m.closed
		m.mu.Unlock()
		_ = conn.Close()

		if closed || ctx.Err() != nil {
			m.setState(StateDisconnected)
			return
		}
		log.Printf("channel: connection lost (conn=%s), reconnecting", connID)
		m.setState(StateReconnecting)
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		conn, resp, err := m.dialer.DialContext(ctx, m.url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if resp != nil {
			log.Printf("channel: dial attempt %d/%d failed (%s): %v", attempt, m.maxAttempts, resp.Status, err)
		} else {
			log.Printf("channel: dial attempt %d/%d failed: %v", attempt, m.maxAttempts, err)
		}
		if attempt < m.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.retryDelay):
			}
		}
	}
	return nil, lastErr
}

// readLoop dispatches frames serially so consumers observe transport order.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		evt, err := protocol.ParseHubEvent(raw)
		if err != nil {
			if !errors.Is(err, protocol.ErrUnsupportedType) {
				log.Printf("channel: dropped malformed frame: %v", err)
			}
			continue
		}
		if m.handler != nil {
			m.handler(evt)
		}
	}
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	handler := m.stateHandler
	m.mu.Unlock()

	if handler != nil {
		handler(next)
	}
}
