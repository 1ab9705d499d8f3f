package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
)

// Event types pushed to clients. Phase events come from service.
const (
	EventConnected     = "connected"
	EventSnapshot      = "snapshot"
	EventPhaseResolved = service.EventPhaseResolved
	EventRoomEnded     = service.EventRoomEnded
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Data   any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	RoomID string `json:"room_id"`
}

// WSConn wraps a WebSocket connection with its seat and subscriptions.
// Admin connections see every event unfiltered.
type WSConn struct {
	conn     *websocket.Conn
	roomID   string
	playerID int64
	admin    bool
	send     chan []byte
}

// mayJoin reports whether the connection may subscribe to roomID.
func (c *WSConn) mayJoin(roomID string) bool {
	return c.admin || c.roomID == roomID
}

// Hub manages WebSocket connections and room-channel subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	rooms       map[string]map[*WSConn]bool // roomID -> set of connections
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		rooms:       make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for roomID, conns := range h.rooms {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to a room channel it is allowed to see.
func (h *Hub) Subscribe(c *WSConn, roomID string) bool {
	if !c.mayJoin(roomID) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*WSConn]bool)
	}
	h.rooms[roomID][c] = true
	return true
}

// Unsubscribe removes a connection from a room channel.
func (h *Hub) Unsubscribe(c *WSConn, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// BroadcastToRoom sends an event to every subscriber of a room, trimmed
// to what each seat may see.
func (h *Hub) BroadcastToRoom(roomID string, event WSEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cache := make(map[int64][]byte)
	for c := range h.rooms[roomID] {
		viewer := c.playerID
		if c.admin {
			viewer = 0
		}
		data, ok := cache[viewer]
		if !ok {
			e := event
			if !c.admin {
				e.Data = viewFor(c.playerID, event.Data)
			}
			var err error
			data, err = json.Marshal(e)
			if err != nil {
				log.Error().Err(err).Str("roomId", roomID).Msg("Failed to marshal WebSocket event")
				return
			}
			cache[viewer] = data
		}
		select {
		case c.send <- data:
		default:
			log.Warn().Int64("playerId", c.playerID).Str("roomId", roomID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// RoomSubscriberCount returns the number of connections subscribed to a room.
func (h *Hub) RoomSubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
