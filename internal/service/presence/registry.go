package presence

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry is the authoritative process-wide mapping from user identity to
// that user's active connection. It is the only mutable state shared between
// the WebSocket handlers and the delivery path, so every operation is safe
// for arbitrary concurrent callers.
type Registry struct {
	mu          sync.RWMutex
	clients     map[string]*Client
	broadcaster *Broadcaster
	log         *slog.Logger
}

// NewRegistry builds an empty registry that announces presence changes
// through the given broadcaster.
func NewRegistry(broadcaster *Broadcaster, log *slog.Logger) *Registry {
	return &Registry{
		clients:     make(map[string]*Client),
		broadcaster: broadcaster,
		log:         log,
	}
}

// Register records the connection as the active one for its user,
// unconditionally replacing any previous entry (last writer wins: one active
// session per user). The replaced handle, if any, stays open but is no longer
// a delivery target; its eventual Unregister is a no-op.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	if prior, ok := r.clients[c.userID]; ok {
		r.log.Info("connection replaced", "user", c.userID, "stale_conn", prior.id, "conn", c.id)
	}
	r.clients[c.userID] = c
	online, targets := r.viewLocked()
	r.mu.Unlock()

	r.log.Info("client registered", "user", c.userID, "conn", c.id, "online", len(online))
	r.broadcaster.Announce(online, targets)
}

// Unregister removes the entry for the connection's user only if this exact
// handle is still the registered one. A disconnect of a handle that has
// already been superseded must not evict the newer connection.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	current, ok := r.clients[c.userID]
	if !ok || current != c {
		r.mu.Unlock()
		r.log.Debug("stale unregister ignored", "user", c.userID, "conn", c.id)
		return
	}
	delete(r.clients, c.userID)
	online, targets := r.viewLocked()
	r.mu.Unlock()

	r.log.Info("client unregistered", "user", c.userID, "conn", c.id, "online", len(online))
	r.broadcaster.Announce(online, targets)
}

// Lookup returns the active connection for a user, if any. Pure read.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

// Snapshot returns the identities of every currently connected user.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	online := lo.Keys(r.clients)
	sort.Strings(online)
	return online
}

// viewLocked derives the online set and fan-out targets under the registry
// lock so announcements never observe a torn state.
func (r *Registry) viewLocked() ([]string, []*Client) {
	online := lo.Keys(r.clients)
	sort.Strings(online)
	return online, lo.Values(r.clients)
}
