package message

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bitmitra/realtime/internal/middleware"
	"github.com/bitmitra/realtime/internal/repository"
	chatService "github.com/bitmitra/realtime/internal/service/chat"
	"github.com/bitmitra/realtime/pkg/utils"
)

var validate = validator.New()

// Handler exposes the direct-messaging REST surface.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the message handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the message endpoints. Callers must wrap the router
// with the identity middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message/send/{recipientID}", h.handleSend)
	r.Get("/message/all/{otherUserID}", h.handleHistory)
}

type sendMessageRequest struct {
	TextMessage string `json:"textMessage" validate:"required"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.UserIDFrom(r.Context())
	recipientID := chi.URLParam(r, "recipientID")

	var payload sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "textMessage is required")
		return
	}

	msg, err := h.chatSvc.Send(r.Context(), senderID, recipientID, payload.TextMessage)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyBody) {
			utils.RespondError(w, http.StatusBadRequest, "textMessage is required")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"newMessage": msg,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFrom(r.Context())
	otherUserID := chi.URLParam(r, "otherUserID")

	var limit *int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = &val
	}

	messages, err := h.chatSvc.History(r.Context(), userID, otherUserID, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": messages,
	})
}
