package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/bitmitra/realtime/internal/service/presence"
)

// Handler upgrades presence connections and binds their lifecycle to the
// registry: register on handshake, unregister when the transport closes.
type Handler struct {
	registry *presence.Registry
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// New creates the WebSocket handler.
func New(registry *presence.Registry, log *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the presence endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{userID}", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "userID is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := presence.NewClient(conn, userID, h.log)

	// Registration announces the updated online set to everyone, including
	// this connection: the announcement doubles as the initial snapshot.
	h.registry.Register(client)
	go client.WritePump()
	client.ReadPump()

	// Transport closed. A no-op if a newer connection replaced this one.
	h.registry.Unregister(client)
	h.log.Debug("connection closed",
		"user", client.UserID(),
		"conn", client.ID(),
		"alive", time.Since(client.CreatedAt()),
	)
}
