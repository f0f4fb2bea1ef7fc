// Package broadcast fans discussion turns out to websocket listeners.
// Delivery is best-effort and at-most-once per connection; a failed write
// drops the connection rather than blocking the discussion.
package broadcast

import (
	"sync"
	"time"
)

// TurnMessage is the wire form of one spoken turn.
type TurnMessage struct {
	SpeakerID   string    `json:"agent_id"`
	SpeakerName string    `json:"agent_name,omitempty"`
	Text        string    `json:"speech"`
	Timestamp   time.Time `json:"timestamp"`
}

// Conn is the subset of a websocket connection the hub needs.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub tracks live listener connections per discussion.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: map[string]map[Conn]struct{}{}}
}

// Register attaches a connection to a discussion's listener set.
func (h *Hub) Register(discussionID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[discussionID] == nil {
		h.conns[discussionID] = map[Conn]struct{}{}
	}
	h.conns[discussionID][conn] = struct{}{}
}

// Unregister detaches a connection. The caller owns closing it.
func (h *Hub) Unregister(discussionID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns[discussionID], conn)
	if len(h.conns[discussionID]) == 0 {
		delete(h.conns, discussionID)
	}
}

// Publish sends a turn to every listener of the discussion. Connections that
// fail to accept the write are closed and pruned.
func (h *Hub) Publish(discussionID string, msg TurnMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[discussionID] {
		if err := conn.WriteJSON(msg); err != nil {
			logger.Warn("dropping dead listener", "discussion_id", discussionID, "error", err)
			conn.Close()
			delete(h.conns[discussionID], conn)
		}
	}
	if len(h.conns[discussionID]) == 0 {
		delete(h.conns, discussionID)
	}
}

// Listeners returns the number of live connections for a discussion.
func (h *Hub) Listeners(discussionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[discussionID])
}
