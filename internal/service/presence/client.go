package presence

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Server→client event names, matching the wire contract the front end
	// already speaks.
	EventOnlineUsers  = "online_users"
	EventNewMessage   = "new_message"
	EventNotification = "notification"

	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 54 * time.Second

	outboxSize = 64
)

// Event is the envelope for every server→client push.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one live WebSocket connection owned by a single user. The handle
// carries its own identity so a delayed disconnect for a superseded
// connection can be told apart from the current one.
type Client struct {
	id        string
	userID    string
	createdAt time.Time

	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

// NewClient wraps an upgraded connection for the given user. conn may be nil
// in tests that only exercise queueing.
func NewClient(conn *websocket.Conn, userID string, log *slog.Logger) *Client {
	return &Client{
		id:        uuid.NewString(),
		userID:    userID,
		createdAt: time.Now().UTC(),
		conn:      conn,
		send:      make(chan []byte, outboxSize),
		done:      make(chan struct{}),
		log:       log,
	}
}

// ID returns the unique connection identifier.
func (c *Client) ID() string { return c.id }

// UserID returns the identity that owns this connection.
func (c *Client) UserID() string { return c.userID }

// CreatedAt returns when the connection was established.
func (c *Client) CreatedAt() time.Time { return c.createdAt }

// Outbox exposes the queued outbound frames; the write pump drains it.
func (c *Client) Outbox() <-chan []byte { return c.send }

// Push queues an event for delivery. Delivery is best-effort: a slow or
// closing connection drops the event and Push reports false. Nothing is
// retried or surfaced to the producer.
func (c *Client) Push(event string, data any) bool {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		c.log.Error("encode event failed", "event", event, "error", err)
		return false
	}
	return c.enqueue(payload)
}

func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close tears the connection down exactly once. Safe to call from any
// goroutine and from both pumps.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// ReadPump consumes inbound frames until the transport reports closed. The
// only inbound frame the server understands is the "ping" keepalive, answered
// with "pong"; everything else is ignored. Blocks the caller.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debug("read error", "user", c.userID, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		if string(raw) == "ping" {
			c.enqueue([]byte("pong"))
		}
	}
}

// WritePump serializes all writes to the connection: queued events plus the
// periodic transport-level ping. Runs until the connection closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("write failed", "user", c.userID, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
