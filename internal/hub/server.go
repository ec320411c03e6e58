package hub

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-paper-trading/internal/logger"
	"github.com/rxtech-lab/argo-paper-trading/internal/version"
	"github.com/rxtech-lab/argo-paper-trading/pkg/errors"
	"go.uber.org/zap"
)

// Server is the HTTP server exposing the hub.
type Server struct {
	hub        *Hub
	httpServer *http.Server
	listener   net.Listener
	logger     *logger.Logger
}

// NewServer creates a server for the hub. Call Start to listen.
func NewServer(hub *Hub, log *logger.Logger) *Server {
	return &Server{
		hub:        hub,
		httpServer: nil,
		listener:   nil,
		logger:     log.Named("server"),
	}
}

// Router returns the HTTP routes: GET /ws upgrades to WebSocket, GET /healthz reports liveness.
func (h *Hub) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	return router
}

func (h *Hub) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"version":     version.GetVersion(),
		"connections": h.ConnectionCount(),
	})
}

// Start listens on address and serves in the background. ":0" picks a free port.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to listen on %s", address)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.hub.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Server listening", zap.String("address", s.Address()))

	return nil
}

// Address returns the address the server listens on.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Stop closes every WebSocket connection and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}
