package handler

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

func newTestConn(roomID string, playerID int64) *WSConn {
	return &WSConn{
		conn:     nil, // no real connection for hub tests
		roomID:   roomID,
		playerID: playerID,
		send:     make(chan []byte, 256),
	}
}

func newAdminConn() *WSConn {
	return &WSConn{admin: true, send: make(chan []byte, 256)}
}

func receive(t *testing.T, c *WSConn) WSEvent {
	t.Helper()
	select {
	case msg := <-c.send:
		var event WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("did not receive broadcast")
	}
	return WSEvent{}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	c := newTestConn("room-1", 1)

	hub.Register(c)
	if hub.ConnectionCount() != 1 {
		t.Errorf("expected 1 connection, got %d", hub.ConnectionCount())
	}

	hub.Unregister(c)
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections, got %d", hub.ConnectionCount())
	}
	// A second unregister must not close send twice.
	hub.Unregister(c)
}

func TestHubSubscribeOwnRoomOnly(t *testing.T) {
	hub := NewHub()
	c := newTestConn("room-1", 1)
	hub.Register(c)
	defer hub.Unregister(c)

	if !hub.Subscribe(c, "room-1") {
		t.Fatal("expected own room subscription to succeed")
	}
	if hub.Subscribe(c, "room-2") {
		t.Error("expected foreign room subscription to be refused")
	}
	if hub.RoomSubscriberCount("room-1") != 1 || hub.RoomSubscriberCount("room-2") != 0 {
		t.Errorf("unexpected subscribers: room-1=%d room-2=%d", hub.RoomSubscriberCount("room-1"), hub.RoomSubscriberCount("room-2"))
	}

	hub.Unsubscribe(c, "room-1")
	if hub.RoomSubscriberCount("room-1") != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.RoomSubscriberCount("room-1"))
	}

	admin := newAdminConn()
	hub.Register(admin)
	defer hub.Unregister(admin)
	if !hub.Subscribe(admin, "room-2") {
		t.Error("expected admin to subscribe anywhere")
	}
}

func TestHubBroadcastToRoom(t *testing.T) {
	hub := NewHub()
	c1 := newTestConn("room-1", 1)
	c2 := newTestConn("room-1", 2)
	c3 := newTestConn("room-2", 1)

	for _, c := range []*WSConn{c1, c2, c3} {
		hub.Register(c)
		defer hub.Unregister(c)
		hub.Subscribe(c, c.roomID)
	}

	hub.BroadcastRoomEvent("room-1", EventRoomEnded, map[string]string{"reason": "max turns"})

	for _, c := range []*WSConn{c1, c2} {
		event := receive(t, c)
		if event.Type != EventRoomEnded || event.RoomID != "room-1" {
			t.Errorf("unexpected event %+v", event)
		}
	}
	select {
	case <-c3.send:
		t.Error("room-2 subscriber should not have received broadcast")
	default:
	}
}

func TestHubPhaseResultIsFogged(t *testing.T) {
	hub := NewHub()
	aria := newTestConn("room-1", 1)
	boros := newTestConn("room-1", 2)
	admin := newAdminConn()
	for _, c := range []*WSConn{aria, boros, admin} {
		hub.Register(c)
		defer hub.Unregister(c)
		hub.Subscribe(c, "room-1")
	}

	res := &realm.PhaseResult{
		RoomID: "room-1",
		Turn:   3,
		Phase:  realm.PhaseActions,
		News: []realm.News{
			{ID: "g", Scope: realm.ScopeGlobal, Text: "a battle"},
			{ID: "p", Scope: realm.ScopePrivate, Players: []realm.PlayerID{1}, Text: "your build failed"},
		},
		Deltas: map[realm.PlayerID]realm.Delta{1: {}, 2: {}},
		Actions: []realm.SubmissionOutcome{
			{ID: "a1", Player: 1, OK: false},
			{ID: "a2", Player: 2, OK: true},
		},
	}
	hub.BroadcastRoomEvent("room-1", EventPhaseResolved, res)

	decode := func(c *WSConn) realm.PhaseResult {
		t.Helper()
		event := receive(t, c)
		raw, _ := json.Marshal(event.Data)
		var got realm.PhaseResult
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode phase result: %v", err)
		}
		return got
	}

	got := decode(aria)
	if len(got.News) != 2 || len(got.Actions) != 1 || got.Actions[0].ID != "a1" || len(got.Deltas) != 1 {
		t.Errorf("unexpected view for aria: %+v", got)
	}
	got = decode(boros)
	if len(got.News) != 1 || got.News[0].ID != "g" || len(got.Actions) != 1 || got.Actions[0].ID != "a2" {
		t.Errorf("unexpected view for boros: %+v", got)
	}
	got = decode(admin)
	if len(got.News) != 2 || len(got.Actions) != 2 || len(got.Deltas) != 2 {
		t.Errorf("admin should see everything: %+v", got)
	}
	if len(res.News) != 2 || len(res.Actions) != 2 {
		t.Error("broadcast must not modify the original result")
	}
}

func TestHubUnregisterCleansUpSubscriptions(t *testing.T) {
	hub := NewHub()
	c := newAdminConn()
	hub.Register(c)
	hub.Subscribe(c, "room-1")
	hub.Subscribe(c, "room-2")

	hub.Unregister(c)

	if hub.RoomSubscriberCount("room-1") != 0 {
		t.Errorf("expected 0 subscribers for room-1 after unregister")
	}
	if hub.RoomSubscriberCount("room-2") != 0 {
		t.Errorf("expected 0 subscribers for room-2 after unregister")
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := newTestConn("room-1", id)
			hub.Register(c)
			hub.Subscribe(c, "room-1")
			hub.BroadcastRoomEvent("room-1", "test", nil)
			hub.Unsubscribe(c, "room-1")
			hub.Unregister(c)
		}(int64(i + 1))
	}

	wg.Wait()
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections after concurrent test, got %d", hub.ConnectionCount())
	}
}

func TestClientMessageSerialization(t *testing.T) {
	var parsed ClientMessage
	if err := json.Unmarshal([]byte(`{"action":"subscribe","room_id":"room-1"}`), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Action != "subscribe" || parsed.RoomID != "room-1" {
		t.Errorf("unexpected message %+v", parsed)
	}
}
