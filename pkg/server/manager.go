package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gloomgate-dev/gloomgate/pkg/protocol"
)

// Dispatcher turns one inbound frame into a response envelope plus its
// target connection ids.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte, originID int) (*protocol.Response, []int)
}

// Manager owns every live connection. It assigns monotonically increasing
// ids, runs the per-connection loops, fans responses out to their targets
// and drives the two-phase shutdown.
type Manager struct {
	cfg        *Config
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *Metrics

	mu     sync.RWMutex
	conns  map[int]*Conn
	nextID int
	closed bool

	// ctx is the shared receive scope. Cancelling it aborts any dispatch
	// still in flight during shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a connection manager.
func NewManager(cfg *Config, dispatcher Dispatcher, logger *slog.Logger, metrics *Metrics) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger.With("component", "manager"),
		metrics:    metrics,
		conns:      make(map[int]*Conn),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Accept registers an upgraded socket and serves it until the peer
// disconnects or the manager shuts down. It blocks on the caller's
// goroutine.
func (m *Manager) Accept(ws *websocket.Conn) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		ws.Close()
		return ErrServerClosed
	}
	m.nextID++
	c := newConn(m.nextID, ws, m.cfg, m.logger, m.metrics)
	// Open before the connection becomes visible in the table, so a
	// concurrent Broadcast never catches it still connecting.
	c.transition(stateConnecting, stateOpen)
	m.conns[c.id] = c
	m.mu.Unlock()

	m.metrics.ConnectionsTotal.Inc()
	m.metrics.ActiveConnections.Inc()
	m.logger.Info("connection accepted", "conn_id", c.id)

	go c.writeLoop()
	c.readLoop(m.cfg.MaxMessageSize, func(raw []byte) {
		resp, targets := m.dispatcher.Dispatch(m.ctx, raw, c.id)
		if resp == nil {
			return
		}
		if resp.Header.StatusCode != protocol.StatusOK {
			m.metrics.DispatchErrors.Inc()
		}
		m.Send(resp, targets)
	})

	m.drop(c)
	return nil
}

// drop removes a connection from the table and tears it down.
func (m *Manager) drop(c *Conn) {
	m.mu.Lock()
	_, live := m.conns[c.id]
	delete(m.conns, c.id)
	m.mu.Unlock()

	c.close()
	if live {
		m.metrics.ActiveConnections.Dec()
		m.logger.Info("connection dropped", "conn_id", c.id)
	}
}

// Send encodes the response once and queues it on every live target.
// Targets that are no longer connected are skipped.
func (m *Manager) Send(resp *protocol.Response, targets []int) {
	frame, err := protocol.EncodeResponse(resp)
	if err != nil {
		m.logger.Error("response encode failed", "error", err)
		return
	}

	for _, id := range targets {
		m.mu.RLock()
		c := m.conns[id]
		m.mu.RUnlock()
		if c == nil {
			m.logger.Debug("send target gone", "conn_id", id)
			continue
		}
		if err := c.Enqueue(frame); err != nil {
			m.logger.Debug("enqueue failed", "conn_id", id, "error", err)
		}
	}
}

// Broadcast wraps the body in a broadcast envelope and queues it on every
// live connection.
func (m *Manager) Broadcast(body any) {
	resp := protocol.NewBroadcastResponse(body)
	frame, err := protocol.EncodeResponse(resp)
	if err != nil {
		m.logger.Error("broadcast encode failed", "error", err)
		return
	}

	m.mu.RLock()
	conns := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := c.Enqueue(frame); err != nil {
			m.logger.Debug("broadcast enqueue failed", "conn_id", c.id, "error", err)
		}
	}
	m.metrics.BroadcastsTotal.Inc()
}

// IsLive reports whether the connection id is currently registered.
func (m *Manager) IsLive(id int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[id]
	return ok
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Shutdown closes every connection in two phases. First each socket gets a
// graceful close handshake, one at a time, bounded by CloseTimeout each.
// Then the shared receive scope is cancelled and every remaining socket is
// torn down exactly once. New accepts are rejected from the first moment.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	m.logger.Info("shutting down", "connections", len(conns))

	for _, c := range conns {
		if ctx.Err() != nil {
			break
		}
		c.closeGracefully(m.cfg.CloseTimeout)
	}

	m.cancel()
	for _, c := range conns {
		m.drop(c)
	}

	m.logger.Info("shutdown complete")
	return ctx.Err()
}
