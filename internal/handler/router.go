package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bitmitra/realtime/internal/config"
	messageHandler "github.com/bitmitra/realtime/internal/handler/message"
	wsHandler "github.com/bitmitra/realtime/internal/handler/ws"
	middlewarePkg "github.com/bitmitra/realtime/internal/middleware"
	chatService "github.com/bitmitra/realtime/internal/service/chat"
	"github.com/bitmitra/realtime/internal/service/presence"
	"github.com/bitmitra/realtime/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.ServerConfig, registry *presence.Registry, chatSvc *chatService.Service, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigin))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Presence connections authenticate through the handshake path parameter;
	// browsers cannot set headers on WebSocket upgrades.
	wsHandler.New(registry, log).RegisterRoutes(r)

	r.Group(func(authed chi.Router) {
		authed.Use(middlewarePkg.Identity)
		messageHandler.New(chatSvc).RegisterRoutes(authed)
	})

	return r
}
