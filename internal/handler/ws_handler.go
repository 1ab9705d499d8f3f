package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gorilla/websocket"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/auth"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub    *Hub
	jwtMgr *auth.JWTManager
	rooms  *service.RoomService // optional: enables snapshots
}

// NewWSHandler creates a WSHandler. rooms may be nil, in which case the
// "sync" action is ignored.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, rooms *service.RoomService) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, rooms: rooms}
}

// ServeWS handles GET /api/v1/ws. Seat connections are subscribed to
// their own room; admin connections subscribe explicitly.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, `{"error":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtMgr.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:     conn,
		roomID:   claims.RoomID,
		playerID: claims.PlayerID,
		admin:    claims.Admin,
		send:     make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)
	if client.roomID != "" {
		h.hub.Subscribe(client, client.roomID)
	}

	welcome, _ := json.Marshal(WSEvent{Type: EventConnected, RoomID: client.roomID, Data: map[string]any{"playerId": client.playerID}})
	client.send <- welcome
	if !client.admin {
		h.sendSnapshot(r.Context(), client, client.roomID)
	}

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("roomId", client.roomID).Int64("playerId", client.playerID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("roomId", c.roomID).Int64("playerId", c.playerID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Int64("playerId", c.playerID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.handleClientMessage(c, msg)
	}
}

func (h *WSHandler) handleClientMessage(c *WSConn, msg ClientMessage) {
	if msg.RoomID == "" {
		return
	}
	switch msg.Action {
	case "subscribe":
		if !h.hub.Subscribe(c, msg.RoomID) {
			log.Warn().Int64("playerId", c.playerID).Str("roomId", msg.RoomID).Msg("WebSocket subscribe refused")
		}
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.RoomID)
	case "sync":
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		h.sendSnapshot(ctx, c, msg.RoomID)
	}
}

// sendSnapshot queues the connection's current view of a room.
func (h *WSHandler) sendSnapshot(ctx context.Context, c *WSConn, roomID string) {
	if h.rooms == nil || roomID == "" || !c.mayJoin(roomID) {
		return
	}
	world, err := h.rooms.GetRoom(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Msg("WebSocket snapshot failed")
		return
	}
	var data any = world
	if !c.admin {
		data = buildRoomView(world, realm.PlayerID(c.playerID))
	}
	msg, err := json.Marshal(WSEvent{Type: EventSnapshot, RoomID: roomID, Data: data})
	if err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("Failed to marshal snapshot")
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Warn().Int64("playerId", c.playerID).Str("roomId", roomID).Msg("Dropping snapshot, buffer full")
	}
}

// writePump writes messages to the WebSocket connection.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued messages into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
