package chat

import (
	"context"
	"log/slog"

	"github.com/bitmitra/realtime/internal/model/chat"
	"github.com/bitmitra/realtime/internal/repository"
	"github.com/bitmitra/realtime/internal/service/presence"
)

// Service composes the message store and the connection registry into the
// send-message use case. It is the only component that touches both.
type Service struct {
	messages *repository.MessageRepository
	registry *presence.Registry
	log      *slog.Logger
}

// NewService wires the delivery service to its collaborators.
func NewService(messages *repository.MessageRepository, registry *presence.Registry, log *slog.Logger) *Service {
	return &Service{messages: messages, registry: registry, log: log}
}

// Send persists the message, then pushes it to the recipient's live
// connection if one is registered. Persistence happens before delivery,
// never the reverse: history stays the source of truth even when the live
// push is skipped or dropped. The persisted record is the acknowledgment,
// regardless of recipient presence.
func (s *Service) Send(ctx context.Context, senderID, receiverID, body string) (chat.Message, error) {
	msg, err := s.messages.Append(ctx, senderID, receiverID, body)
	if err != nil {
		return chat.Message{}, err
	}

	if client, ok := s.registry.Lookup(receiverID); ok {
		if !client.Push(presence.EventNewMessage, msg) {
			// Best effort only; the recipient finds the message in history.
			s.log.Debug("live push dropped", "receiver", receiverID, "message", msg.ID)
		}
	}
	return msg, nil
}

// History returns the conversation between the two users, ascending by
// creation time. The pair is unordered. limit, when non-nil, keeps only the
// newest N messages.
func (s *Service) History(ctx context.Context, userA, userB string, limit *int) ([]chat.Message, error) {
	return s.messages.History(ctx, userA, userB, limit)
}

// Notify pushes an arbitrary notification payload to a user's live
// connection, reporting whether it was queued. Used by the surrounding
// application (likes, comments, follows) and intentionally best effort.
func (s *Service) Notify(_ context.Context, userID string, payload any) bool {
	client, ok := s.registry.Lookup(userID)
	if !ok {
		return false
	}
	return client.Push(presence.EventNotification, payload)
}
