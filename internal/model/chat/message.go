package chat

import "time"

// Message is a single direct message between two users. Records are
// immutable once persisted; there is no edit or delete path.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}
