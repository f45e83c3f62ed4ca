// Package realtime holds the process-wide registry of live client
// connections and the dispatcher that pushes events to them.
//
// Delivery is best effort and at most once: there is no retry and no
// buffering. A send that fails removes the connection from the registry; the
// durable record (notification row, chat message) remains the source of
// truth for clients that were offline.
package realtime

import (
	"context"
	"sync"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/obs"
)

// Conn is one live transport session. Implementations must make Send safe to
// call after the underlying transport has died (returning an error).
type Conn interface {
	// Send pushes one event; an error marks the connection dead.
	Send(ctx context.Context, evt Event) error
	// Close tears the transport down. Closing twice is harmless.
	Close(reason string)
}

type binding struct {
	principalID string
	authCtx     auth.Context
}

// Hub maps principals to their live connections and each connection to the
// authorization context captured at connect time. All mutation happens under
// one mutex; a read-then-send-then-maybe-remove sequence is a single critical
// section so no send races a concurrent removal.
type Hub struct {
	mu       sync.Mutex
	byUser   map[string]map[Conn]struct{}
	bindings map[Conn]binding
}

// NewHub initialises an empty registry.
func NewHub() *Hub {
	return &Hub{
		byUser:   make(map[string]map[Conn]struct{}),
		bindings: make(map[Conn]binding),
	}
}

// Register accepts an authenticated connection into the registry. A principal
// may hold many simultaneous connections.
func (h *Hub) Register(principalID string, c Conn, ac auth.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byUser[principalID]
	if !ok {
		set = make(map[Conn]struct{})
		h.byUser[principalID] = set
	}
	if _, dup := set[c]; dup {
		return
	}
	set[c] = struct{}{}
	h.bindings[c] = binding{principalID: principalID, authCtx: ac}
	obs.ConnectionOpened()
}

// Unregister removes a connection. It is idempotent: close and error
// callbacks for the same connection may both land here.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked deletes c from both maps. Caller holds h.mu.
func (h *Hub) removeLocked(c Conn) {
	b, ok := h.bindings[c]
	if !ok {
		return
	}
	delete(h.bindings, c)
	if set, ok := h.byUser[b.principalID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, b.principalID)
		}
	}
	obs.ConnectionClosed()
}

// SendToUser pushes an event to every live connection of one principal.
// Failed connections are removed opportunistically. Reports whether at least
// one delivery succeeded.
func (h *Hub) SendToUser(ctx context.Context, principalID, event string, data any) bool {
	evt := Event{Event: event, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.byUser[principalID]
	if !ok || len(set) == 0 {
		return false
	}

	sent := false
	for c := range set {
		if err := c.Send(ctx, evt); err != nil {
			obs.EventDelivered(event, false)
			h.removeLocked(c)
			continue
		}
		obs.EventDelivered(event, true)
		sent = true
	}
	return sent
}

// BroadcastToRole pushes an event to every connection whose captured context
// holds the role. Returns the number of successful deliveries.
func (h *Hub) BroadcastToRole(ctx context.Context, role auth.Role, event string, data any) int {
	evt := Event{Event: event, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for c, b := range h.bindings {
		if b.authCtx.Role != role {
			continue
		}
		if err := c.Send(ctx, evt); err != nil {
			obs.EventDelivered(event, false)
			h.removeLocked(c)
			continue
		}
		obs.EventDelivered(event, true)
		count++
	}
	return count
}

// BroadcastToAll pushes an event to every registered connection. Returns the
// number of successful deliveries.
func (h *Hub) BroadcastToAll(ctx context.Context, event string, data any) int {
	evt := Event{Event: event, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for c := range h.bindings {
		if err := c.Send(ctx, evt); err != nil {
			obs.EventDelivered(event, false)
			h.removeLocked(c)
			continue
		}
		obs.EventDelivered(event, true)
		count++
	}
	return count
}

// ConnectedUsers returns the ids of principals with at least one live
// connection.
func (h *Hub) ConnectedUsers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.byUser))
	for id := range h.byUser {
		out = append(out, id)
	}
	return out
}

// Connections reports the number of live connections for a principal.
func (h *Hub) Connections(principalID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byUser[principalID])
}
