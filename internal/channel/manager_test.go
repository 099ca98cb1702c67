package channel

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ppastore/dayflow/internal/protocol"
)

type hubStub struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	reads chan []byte
}

func newHubStub(t *testing.T) (*hubStub, *httptest.Server) {
	t.Helper()
	h := &hubStub{t: t, reads: make(chan []byte, 16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.conns = append(h.conns, conn)
		h.mu.Unlock()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h.reads <- raw
		}
	}))
	t.Cleanup(srv.Close)
	return h, srv
}

func (h *hubStub) send(t *testing.T, payload string) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		t.Fatalf("no hub connection to send on")
	}
	conn := h.conns[len(h.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("hub write: %v", err)
	}
}

func (h *hubStub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		_ = conn.Close()
	}
	h.conns = nil
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectDispatchAndEmit(t *testing.T) {
	hub, srv := newHubStub(t)

	events := make(chan any, 16)
	m := NewManager(Config{URL: wsURL(srv), RetryDelay: 10 * time.Millisecond, MaxAttempts: 3})
	m.OnEvent(func(evt any) { events <- evt })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Close()

	waitFor(t, "connected", m.Connected)

	hub.send(t, `{"type":"task:started","taskId":"t1","agentType":"scout"}`)
	select {
	case evt := <-events:
		started, ok := evt.(protocol.TaskStarted)
		if !ok {
			t.Fatalf("dispatched %T, want TaskStarted", evt)
		}
		if started.TaskID != "t1" {
			t.Fatalf("taskId = %q, want t1", started.TaskID)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for dispatched event")
	}

	if err := m.Emit(protocol.NewTaskSubmit("req-1", "scout", "chat", "run tests", nil)); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	select {
	case raw := <-hub.reads:
		if !strings.Contains(string(raw), `"task:submit"`) {
			t.Fatalf("hub received %s, want a task:submit frame", raw)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for emitted frame")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	hub, srv := newHubStub(t)

	var mu sync.Mutex
	var states []State
	m := NewManager(Config{URL: wsURL(srv), RetryDelay: 10 * time.Millisecond, MaxAttempts: 3})
	m.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Close()

	waitFor(t, "first connection", m.Connected)
	hub.dropAll()
	waitFor(t, "reconnection", func() bool {
		mu.Lock()
		defer mu.Unlock()
		seenReconnecting := false
		for _, s := range states {
			if s == StateReconnecting {
				seenReconnecting = true
			}
		}
		return seenReconnecting && m.Connected()
	})
}

func TestDialFailureExhaustsAttemptsThenManualRetry(t *testing.T) {
	// Reserve a port with no listener behind it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadAddr := ln.Addr().String()
	_ = ln.Close()

	m := NewManager(Config{URL: "ws://" + deadAddr, RetryDelay: time.Millisecond, MaxAttempts: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	waitFor(t, "disconnected after attempt budget", func() bool {
		return m.State() == StateDisconnected
	})
	if err := m.Emit(struct{}{}); err != ErrNotConnected {
		t.Fatalf("Emit() while disconnected = %v, want ErrNotConnected", err)
	}

	// A hub appears at the same address; manual retry restores the connection.
	ln2, err := net.Listen("tcp", deadAddr)
	if err != nil {
		t.Skipf("could not rebind %s: %v", deadAddr, err)
	}
	upgrader := websocket.Upgrader{}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})}
	go func() { _ = srv.Serve(ln2) }()
	t.Cleanup(func() { _ = srv.Close() })

	m.Retry()
	waitFor(t, "connected after manual retry", m.Connected)
	_ = m.Close()
}
