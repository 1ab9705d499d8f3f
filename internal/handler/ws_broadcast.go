package handler

import (
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// BroadcastRoomEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastRoomEvent(roomID string, eventType string, data any) {
	h.BroadcastToRoom(roomID, WSEvent{
		Type:   eventType,
		RoomID: roomID,
		Data:   data,
	})
}

// viewFor trims a phase result to one player's view: news visible to
// them, their own action outcomes and their own resource delta.
func viewFor(player int64, data any) any {
	res, ok := data.(*realm.PhaseResult)
	if !ok || res == nil {
		return data
	}
	p := realm.PlayerID(player)
	out := *res
	out.News = nil
	for _, n := range res.News {
		if n.VisibleTo(p) {
			out.News = append(out.News, n)
		}
	}
	out.Actions = nil
	for _, a := range res.Actions {
		if a.Player == p {
			out.Actions = append(out.Actions, a)
		}
	}
	out.Deltas = make(map[realm.PlayerID]realm.Delta, 1)
	if d, ok := res.Deltas[p]; ok {
		out.Deltas[p] = d
	}
	return &out
}
