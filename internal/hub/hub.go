// Package hub is the realtime WebSocket hub of the paper trading server.
//
// Clients drive the ledger with request/response messages correlated by a client-supplied
// requestId, and observe every ledger and signal event through broadcasts. Broadcast delivery is
// best-effort and at-most-once: a connection whose send queue is full, or that is closing, misses
// the event and is expected to re-pull state with a request.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
	"github.com/rxtech-lab/argo-paper-trading/internal/version"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"go.uber.org/zap"
)

// ConnectionStatus is the data of the connection_status event sent once when a connection opens.
type ConnectionStatus struct {
	Status        string `json:"status"`
	ConnectionID  string `json:"connectionId"`
	ServerVersion string `json:"serverVersion"`
	Timestamp     string `json:"timestamp"`
}

// Hub owns the set of open connections and dispatches their requests.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	handlers    map[string]handlerFunc
	services    Services
	cfg         config.ServerConfig
	upgrader    websocket.Upgrader
	validate    *validator.Validate
	logger      *logger.Logger
	now         func() time.Time
}

// NewHub creates a hub serving the given services.
func NewHub(services Services, cfg config.ServerConfig, log *logger.Logger) *Hub {
	h := &Hub{
		mu:          sync.RWMutex{},
		connections: make(map[string]*Connection),
		handlers:    make(map[string]handlerFunc),
		services:    services,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		validate: newValidator(),
		logger:   log.Named("hub"),
		now:      func() time.Time { return time.Now().UTC() },
	}

	h.registerHandlers()

	return h
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))

		return
	}

	conn := newConnection(uuid.New().String(), ws, h)
	h.register(conn)

	// queued before OPEN so it precedes every broadcast
	status, err := json.Marshal(types.NewEvent(types.EventConnectionStatus, ConnectionStatus{
		Status:        "connected",
		ConnectionID:  conn.ID(),
		ServerVersion: version.GetVersion(),
		Timestamp:     h.now().Format(time.RFC3339Nano),
	}))
	if err == nil {
		conn.reply(status)
	}

	conn.open()

	h.logger.Info("Connection opened",
		zap.String("connection_id", conn.ID()),
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("connections", h.ConnectionCount()),
	)

	go conn.writePump()

	conn.readPump(r.Context())
}

// Publish broadcasts a domain event. It implements events.Publisher.
func (h *Hub) Publish(event types.Event) {
	h.Broadcast(event)
}

// Broadcast sends the event to every OPEN connection without blocking. It returns the number of
// connections the event was queued for.
func (h *Hub) Broadcast(event types.Event) int {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", zap.String("type", string(event.Type)), zap.Error(err))

		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0

	for _, conn := range h.connections {
		if conn.enqueue(message) {
			delivered++
		} else {
			h.logger.Debug("Broadcast dropped",
				zap.String("connection_id", conn.ID()),
				zap.String("type", string(event.Type)),
			)
		}
	}

	return delivered
}

// HandleInbound processes one raw message from a connection and queues the response on it.
func (h *Hub) HandleInbound(ctx context.Context, conn *Connection, raw []byte) {
	response := h.Dispatch(ctx, raw)

	encoded, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.String("type", response.Type), zap.Error(err))

		encoded, _ = json.Marshal(errorMessage(ErrMessageInternal, int(errors.ErrCodeUnknown), response.RequestID))
	}

	conn.reply(encoded)
}

// Dispatch parses a raw message and runs its handler. It never panics.
func (h *Hub) Dispatch(ctx context.Context, raw []byte) (response OutboundMessage) {
	var inbound InboundMessage
	if err := json.Unmarshal(raw, &inbound); err != nil {
		return errorMessage(ErrMessageInvalidFormat, int(errors.ErrCodeProtocol), nil)
	}

	if inbound.Type == "" {
		return errorMessage(ErrMessageInvalidFormat, int(errors.ErrCodeProtocol), inbound.RequestID)
	}

	handler, ok := h.handlers[inbound.Type]
	if !ok {
		return errorMessage(ErrMessageUnknownType+inbound.Type, int(errors.ErrCodeUnknownMessageType), inbound.RequestID)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			h.logger.Error("Handler panicked",
				zap.String("type", inbound.Type),
				zap.String("panic", fmt.Sprint(recovered)),
				zap.ByteString("stack", debug.Stack()),
			)

			response = errorMessage(ErrMessageInternal, int(errors.ErrCodeUnknown), inbound.RequestID)
		}
	}()

	data, err := handler(ctx, inbound.Payload)
	if err != nil {
		h.logger.Debug("Request failed", zap.String("type", inbound.Type), zap.Error(err))

		return errorMessage(errors.UserMessage(err), int(errors.GetCode(err)), inbound.RequestID)
	}

	return OutboundMessage{
		Type:      responseType(inbound.Type),
		Data:      data,
		RequestID: inbound.RequestID,
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.connections)
}

// Close closes every connection.
func (h *Hub) Close() {
	h.mu.RLock()
	connections := make([]*Connection, 0, len(h.connections))

	for _, conn := range h.connections {
		connections = append(connections, conn)
	}
	h.mu.RUnlock()

	for _, conn := range connections {
		conn.close()
	}
}

func (h *Hub) register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn.ID()] = conn
}

func (h *Hub) unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.connections, conn.ID())
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(_ *http.Request) bool { return true }
	}

	origins := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origins[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		_, ok := origins[origin]

		return ok
	}
}
