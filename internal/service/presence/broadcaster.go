package presence

import (
	"encoding/json"
	"log/slog"
)

// Broadcaster fans the current online-user set out to every live connection
// whenever the registry changes. The full set is sent rather than a delta:
// at this scale the bandwidth cost is trivial and a client that misses an
// announcement self-heals on the next one (or on reconnect).
type Broadcaster struct {
	log *slog.Logger
}

func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{log: log}
}

// Announce publishes the online set to all targets, fire and forget. No
// acknowledgment is awaited; a connection that is mid-teardown simply misses
// this announcement.
func (b *Broadcaster) Announce(online []string, targets []*Client) {
	payload, err := json.Marshal(Event{Event: EventOnlineUsers, Data: online})
	if err != nil {
		b.log.Error("encode online set failed", "error", err)
		return
	}
	for _, c := range targets {
		if !c.enqueue(payload) {
			b.log.Debug("presence announcement dropped", "user", c.userID, "conn", c.id)
		}
	}
}
