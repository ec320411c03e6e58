package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"go.uber.org/zap"
)

// ConnectionState is the lifecycle state of a connection: CONNECTING -> OPEN -> CLOSED.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateOpen
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Connection is one WebSocket client. Reads happen on the read pump, writes on the write pump.
type Connection struct {
	id     string
	ws     *websocket.Conn
	hub    *Hub
	send   chan []byte
	state  atomic.Int32
	done   chan struct{}
	once   sync.Once
	logger *logger.Logger
}

func newConnection(id string, ws *websocket.Conn, hub *Hub) *Connection {
	c := &Connection{
		id:     id,
		ws:     ws,
		hub:    hub,
		send:   make(chan []byte, hub.cfg.SendQueueSize),
		state:  atomic.Int32{},
		done:   make(chan struct{}),
		once:   sync.Once{},
		logger: hub.logger.Named("connection"),
	}
	c.state.Store(int32(StateConnecting))

	return c
}

// ID returns the connection id.
func (c *Connection) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// open moves the connection to OPEN. Only OPEN connections receive broadcasts.
func (c *Connection) open() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// enqueue queues a broadcast without blocking. It reports false when the message was dropped.
func (c *Connection) enqueue(message []byte) bool {
	if c.State() != StateOpen {
		return false
	}

	select {
	case <-c.done:
		return false
	case c.send <- message:
		return true
	default:
		return false
	}
}

// reply queues a response, waiting for room in the queue unless the connection closes first.
func (c *Connection) reply(message []byte) {
	select {
	case <-c.done:
	case c.send <- message:
	}
}

// close is idempotent. It unregisters the connection and closes the socket.
func (c *Connection) close() {
	c.once.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		c.hub.unregister(c)

		deadline := time.Now().Add(c.hub.cfg.WriteTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.ws.Close()

		c.logger.Debug("Connection closed", zap.String("connection_id", c.id))
	})
}

// readPump processes inbound messages in arrival order until the socket fails or the pong deadline passes.
func (c *Connection) readPump(ctx context.Context) {
	defer c.close()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Connection read failed", zap.String("connection_id", c.id), zap.Error(err))
			}

			return
		}

		_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))

		c.hub.HandleInbound(ctx, c, raw)

		// time spent in the handler must not count against the peer
		_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	}
}

// writePump is the only writer of data frames. It also sends the keepalive pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)

	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Connection write failed", zap.String("connection_id", c.id), zap.Error(err))

				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.hub.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
