package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connState tracks the lifecycle of one websocket connection.
type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateCloseReceived // peer sent the close frame first
	stateCloseSent     // server sent the close frame, waiting for the ack
	stateClosed
	stateAborted // error or forced cancellation from any non-terminal state
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateCloseReceived:
		return "close_received"
	case stateCloseSent:
		return "close_sent"
	case stateClosed:
		return "closed"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// Conn is one client connection. Outbound frames are queued without bound
// and drained by a paced send loop that writes at most one frame per
// SendInterval, so a chatty room cannot flood a slow client.
type Conn struct {
	id           int
	ws           *websocket.Conn
	sendInterval time.Duration
	logger       *slog.Logger
	metrics      *Metrics

	mu    sync.Mutex
	queue [][]byte
	state connState

	readerDone chan struct{} // closed when the read loop exits
	done       chan struct{} // closed once the socket is fully torn down
	closeOnce  sync.Once
}

func newConn(id int, ws *websocket.Conn, cfg *Config, logger *slog.Logger, metrics *Metrics) *Conn {
	c := &Conn{
		id:           id,
		ws:           ws,
		sendInterval: cfg.SendInterval,
		logger:       logger.With("component", "conn", "conn_id", id),
		metrics:      metrics,
		state:        stateConnecting,
		readerDone:   make(chan struct{}),
		done:         make(chan struct{}),
	}

	// The default close handler echoes the ack; this only records that the
	// peer closed first so teardown lands in Closed instead of Aborted.
	ws.SetCloseHandler(func(code int, text string) error {
		c.transition(stateOpen, stateCloseReceived)
		message := websocket.FormatCloseMessage(code, "")
		ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
		return nil
	})
	return c
}

// ID returns the connection id assigned at accept time.
func (c *Conn) ID() int { return c.id }

// State returns the current lifecycle state.
func (c *Conn) State() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transition moves from one specific state to another, reporting whether it
// happened.
func (c *Conn) transition(from, to connState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

// Enqueue appends one outbound frame to the send queue.
func (c *Conn) Enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateOpen {
		return ErrConnClosed
	}
	c.queue = append(c.queue, frame)
	c.metrics.SendQueueDepth.Observe(float64(len(c.queue)))
	return nil
}

// dequeue pops the oldest queued frame.
func (c *Conn) dequeue() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	frame := c.queue[0]
	c.queue = c.queue[1:]
	return frame, true
}

// writeLoop paces outbound frames, one per tick.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.sendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			frame, ok := c.dequeue()
			if !ok {
				continue
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn("frame write failed", "error", err)
				c.abort()
				return
			}
			c.metrics.FramesSent.Inc()
		}
	}
}

// readLoop reads inbound frames and hands them to the handler until the
// peer closes or the socket errors. It runs on the accepting goroutine.
func (c *Conn) readLoop(maxMessageSize int64, handle func(raw []byte)) {
	defer close(c.readerDone)

	if maxMessageSize > 0 {
		c.ws.SetReadLimit(maxMessageSize)
	}

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				c.State() == stateOpen {
				c.logger.Warn("read failed", "error", err)
			}
			return
		}
		c.metrics.FramesReceived.Inc()
		handle(raw)
	}
}

// closeGracefully sends a close frame and waits up to timeout for the
// peer's acknowledgement before tearing the socket down. Safe to call on
// any state.
func (c *Conn) closeGracefully(timeout time.Duration) {
	if !c.transition(stateOpen, stateCloseSent) {
		return
	}

	deadline := time.Now().Add(timeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server closing")
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.logger.Warn("close frame write failed", "error", err)
		c.abort()
		return
	}

	// The read loop exits when the peer's close frame (or an error)
	// arrives; the deadline covers peers that never answer.
	c.ws.SetReadDeadline(deadline)
	select {
	case <-c.readerDone:
		c.teardown(stateClosed)
	case <-time.After(timeout):
		c.logger.Warn("close ack timed out")
		c.abort()
	}
}

// abort force-closes the socket from any non-terminal state.
func (c *Conn) abort() {
	c.teardown(stateAborted)
}

// close finishes the lifecycle once the read loop has exited. Connections
// that completed a close handshake end Closed, everything else Aborted.
func (c *Conn) close() {
	switch c.State() {
	case stateCloseReceived, stateCloseSent:
		c.teardown(stateClosed)
	case stateClosed, stateAborted:
	default:
		c.abort()
	}
}

// teardown closes the underlying socket and drops any queued frames.
// Idempotent; only the first caller's final state sticks.
func (c *Conn) teardown(final connState) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = final
		c.queue = nil
		c.mu.Unlock()
		close(c.done)
		if err := c.ws.Close(); err != nil {
			c.logger.Debug("socket close", "error", err)
		}
		c.logger.Info("connection torn down", "state", final.String())
	})
}
