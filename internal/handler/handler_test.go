package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/auth"
	redisrepo "github.com/laby37200-cell/civilization-forge-sub000/internal/repository/redis"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository/sqlite"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// apiEnv serves the room API over an in-memory SQLite store and a
// miniredis-backed queue and clock.
type apiEnv struct {
	srv    http.Handler
	jwt    *auth.JWTManager
	admin  string
	mr     *miniredis.Miniredis
	worlds *sqlite.Store
	rooms  *service.RoomService
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	queue := redisrepo.Wrap(rdb)

	jwtMgr := auth.NewJWTManager("test-secret")
	admin, err := jwtMgr.IssueAdmin("tester")
	if err != nil {
		t.Fatalf("issue admin: %v", err)
	}

	rooms := service.NewRoomService(store, queue, time.Minute)
	api := http.NewServeMux()
	RegisterRoutes(api,
		NewRoomHandler(rooms, jwtMgr),
		NewActionHandler(service.NewActionService(store, queue, store)))
	mux := http.NewServeMux()
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Middleware(jwtMgr)(api)))

	return &apiEnv{srv: mux, jwt: jwtMgr, admin: admin, mr: mr, worlds: store, rooms: rooms}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

var threeNations = createRoomRequest{
	Name:   "Frontier",
	Radius: 10,
	Seed:   17,
	Nations: []nationRequest{
		{Name: "Aria", UserID: "user-aria"},
		{Name: "Boros", IsAI: true, Difficulty: realm.Normal},
		{Name: "Cyra", IsAI: true, Difficulty: realm.Hard},
	},
}

// createRoom makes a lobby room and returns it with Aria's seat id.
func (e *apiEnv) createRoom(t *testing.T) (realm.Room, *realm.World) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/rooms", e.admin, threeNations)
	expectStatus(t, rec, http.StatusCreated)
	room := decodeBody[realm.Room](t, rec)

	rec = e.do(t, http.MethodGet, "/rooms/"+room.ID, e.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	return room, decodeBody[*realm.World](t, rec)
}

func playerNamed(t *testing.T, w *realm.World, name string) *realm.Player {
	t.Helper()
	for _, p := range w.Players {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no player %s", name)
	return nil
}

// --- Auth Tests ---

func TestAPIRequiresToken(t *testing.T) {
	e := newAPIEnv(t)
	expectStatus(t, e.do(t, http.MethodGet, "/rooms", "", nil), http.StatusUnauthorized)
	expectStatus(t, e.do(t, http.MethodGet, "/rooms", "garbage", nil), http.StatusUnauthorized)
}

func TestSeatCannotManageRooms(t *testing.T) {
	e := newAPIEnv(t)
	room, _ := e.createRoom(t)
	seat, _ := e.jwt.IssueSeat(room.ID, 1)

	expectStatus(t, e.do(t, http.MethodPost, "/rooms", seat, threeNations), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodPost, "/rooms/"+room.ID+"/start", seat, nil), http.StatusForbidden)
}

// --- Room Tests ---

func TestCreateAndStartRoom(t *testing.T) {
	e := newAPIEnv(t)
	room, world := e.createRoom(t)
	if room.Status != realm.RoomLobby {
		t.Fatalf("expected lobby, got %s", room.Status)
	}
	if len(world.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(world.Players))
	}

	rec := e.do(t, http.MethodPost, "/rooms/"+room.ID+"/start", e.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	started := decodeBody[realm.Room](t, rec)
	if started.Status != realm.RoomPlaying || started.Deadline.IsZero() {
		t.Fatalf("unexpected started room %+v", started)
	}
	if !e.mr.Exists("room:" + room.ID + ":timer") {
		t.Error("expected turn timer to be armed")
	}

	expectStatus(t, e.do(t, http.MethodPost, "/rooms/"+room.ID+"/start", e.admin, nil), http.StatusConflict)
	expectStatus(t, e.do(t, http.MethodPost, "/rooms/missing/start", e.admin, nil), http.StatusNotFound)

	rec = e.do(t, http.MethodGet, "/rooms?status=playing", e.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	if rooms := decodeBody[[]realm.Room](t, rec); len(rooms) != 1 {
		t.Errorf("expected 1 playing room, got %d", len(rooms))
	}
}

func TestCreateRoomValidation(t *testing.T) {
	e := newAPIEnv(t)
	expectStatus(t, e.do(t, http.MethodPost, "/rooms", e.admin, createRoomRequest{}), http.StatusBadRequest)

	bad := threeNations
	bad.Nations = []nationRequest{{Name: "Solo"}}
	expectStatus(t, e.do(t, http.MethodPost, "/rooms", e.admin, bad), http.StatusUnprocessableEntity)
}

func TestIssueSeat(t *testing.T) {
	e := newAPIEnv(t)
	room, world := e.createRoom(t)
	aria := playerNamed(t, world, "Aria")
	boros := playerNamed(t, world, "Boros")

	rec := e.do(t, http.MethodPost, "/rooms/"+room.ID+"/seats/"+strconv.FormatInt(int64(aria.ID), 10), e.admin, nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[map[string]any](t, rec)
	claims, err := e.jwt.ValidateToken(body["token"].(string))
	if err != nil {
		t.Fatalf("validate seat token: %v", err)
	}
	if claims.RoomID != room.ID || claims.PlayerID != int64(aria.ID) {
		t.Errorf("unexpected claims %+v", claims)
	}

	expectStatus(t, e.do(t, http.MethodPost, "/rooms/"+room.ID+"/seats/"+strconv.FormatInt(int64(boros.ID), 10), e.admin, nil), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPost, "/rooms/"+room.ID+"/seats/abc", e.admin, nil), http.StatusBadRequest)
}

func TestIssueUserSeat(t *testing.T) {
	e := newAPIEnv(t)
	room, world := e.createRoom(t)
	aria := playerNamed(t, world, "Aria")
	path := "/rooms/" + room.ID + "/seats"

	rec := e.do(t, http.MethodPost, path, e.admin, map[string]string{"userId": "user-aria"})
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[map[string]any](t, rec)
	if body["playerId"] != float64(aria.ID) {
		t.Errorf("expected Aria's seat, got %v", body["playerId"])
	}

	expectStatus(t, e.do(t, http.MethodPost, path, e.admin, map[string]string{"userId": "stranger"}), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodPost, path, e.admin, map[string]string{}), http.StatusBadRequest)
}

func TestGetRoomIsFogged(t *testing.T) {
	e := newAPIEnv(t)
	room, world := e.createRoom(t)
	aria := playerNamed(t, world, "Aria")
	seat, _ := e.jwt.IssueSeat(room.ID, int64(aria.ID))

	rec := e.do(t, http.MethodGet, "/rooms/"+room.ID, seat, nil)
	expectStatus(t, rec, http.StatusOK)
	view := decodeBody[roomView](t, rec)
	if view.Me == nil || view.Me.Name != "Aria" {
		t.Fatalf("expected own player, got %+v", view.Me)
	}
	if len(view.Players) != 3 {
		t.Errorf("expected 3 player summaries, got %d", len(view.Players))
	}
	if len(view.Tiles) == 0 || len(view.Tiles) >= len(world.Tiles) {
		t.Errorf("expected a partial map, got %d of %d tiles", len(view.Tiles), len(world.Tiles))
	}
	for _, u := range view.Units {
		if u.Owner != aria.ID && !tileIn(view.Tiles, u.Tile) {
			t.Errorf("unit %d on unseen tile %d leaked", u.ID, u.Tile)
		}
	}

	other, _ := e.jwt.IssueSeat("another-room", int64(aria.ID))
	expectStatus(t, e.do(t, http.MethodGet, "/rooms/"+room.ID, other, nil), http.StatusForbidden)
}

func tileIn(tiles []*realm.Tile, id realm.TileID) bool {
	for _, t := range tiles {
		if t.ID == id {
			return true
		}
	}
	return false
}

// --- Action Tests ---

func TestSubmitAction(t *testing.T) {
	e := newAPIEnv(t)
	room, world := e.createRoom(t)
	aria := playerNamed(t, world, "Aria")
	seat, _ := e.jwt.IssueSeat(room.ID, int64(aria.ID))
	path := "/rooms/" + room.ID + "/actions"
	tax := map[string]any{"turn": 1, "actionType": "tax", "data": map[string]any{"rate": 0.3}}

	expectStatus(t, e.do(t, http.MethodPost, path, seat, tax), http.StatusConflict)

	expectStatus(t, e.do(t, http.MethodPost, "/rooms/"+room.ID+"/start", e.admin, nil), http.StatusOK)

	rec := e.do(t, http.MethodPost, path, seat, tax)
	expectStatus(t, rec, http.StatusAccepted)
	sub := decodeBody[realm.Submission](t, rec)
	if sub.ID == "" || sub.Type != realm.ActionTax || sub.PlayerID != aria.ID {
		t.Fatalf("unexpected submission %+v", sub)
	}

	tests := []struct {
		name string
		body any
		want int
	}{
		{"wrong turn", map[string]any{"turn": 3, "actionType": "tax", "data": map[string]any{"rate": 0.3}}, http.StatusConflict},
		{"unknown type", map[string]any{"turn": 1, "actionType": "teleport", "data": map[string]any{}}, http.StatusUnprocessableEntity},
		{"bad payload", map[string]any{"turn": 1, "actionType": "tax", "data": "not an object"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, e.do(t, http.MethodPost, path, seat, tt.body), tt.want)
		})
	}

	rec = e.do(t, http.MethodGet, path+"?turn=1", seat, nil)
	expectStatus(t, rec, http.StatusOK)
	if pending := decodeBody[[]realm.Submission](t, rec); len(pending) != 1 || pending[0].ID != sub.ID {
		t.Errorf("expected the one queued action, got %+v", pending)
	}
	expectStatus(t, e.do(t, http.MethodGet, path, seat, nil), http.StatusBadRequest)

	admin := e.do(t, http.MethodPost, path, e.admin, tax)
	expectStatus(t, admin, http.StatusForbidden)
}

func TestNewsFeed(t *testing.T) {
	e := newAPIEnv(t)
	room, world := e.createRoom(t)
	aria := playerNamed(t, world, "Aria")
	boros := playerNamed(t, world, "Boros")
	seat, _ := e.jwt.IssueSeat(room.ID, int64(aria.ID))

	err := e.worlds.AppendNews(t.Context(), room.ID, []realm.News{
		{ID: "n1", Turn: 1, Kind: realm.NewsBattle, Scope: realm.ScopeGlobal, Text: "battle at the ford"},
		{ID: "n2", Turn: 2, Kind: realm.NewsEspionage, Scope: realm.ScopePrivate, Players: []realm.PlayerID{boros.ID}, Text: "spy report"},
		{ID: "n3", Turn: 2, Kind: realm.NewsTrade, Scope: realm.ScopePrivate, Players: []realm.PlayerID{aria.ID}, Text: "trade settled"},
	})
	if err != nil {
		t.Fatalf("append news: %v", err)
	}

	rec := e.do(t, http.MethodGet, "/rooms/"+room.ID+"/news", seat, nil)
	expectStatus(t, rec, http.StatusOK)
	if news := decodeBody[[]realm.News](t, rec); len(news) != 2 {
		t.Errorf("expected 2 visible items, got %+v", news)
	}

	rec = e.do(t, http.MethodGet, "/rooms/"+room.ID+"/news?since=2", seat, nil)
	expectStatus(t, rec, http.StatusOK)
	if news := decodeBody[[]realm.News](t, rec); len(news) != 1 || news[0].ID != "n3" {
		t.Errorf("expected only n3, got %+v", news)
	}

	expectStatus(t, e.do(t, http.MethodGet, "/rooms/"+room.ID+"/news?since=-1", seat, nil), http.StatusBadRequest)
}

// --- WebSocket Tests ---

func TestSyncSendsFoggedSnapshot(t *testing.T) {
	e := newAPIEnv(t)
	room, world := e.createRoom(t)
	aria := playerNamed(t, world, "Aria")
	ws := NewWSHandler(NewHub(), e.jwt, e.rooms)

	c := newTestConn(room.ID, int64(aria.ID))
	ws.handleClientMessage(c, ClientMessage{Action: "sync", RoomID: room.ID})
	event := receive(t, c)
	if event.Type != EventSnapshot || event.RoomID != room.ID {
		t.Fatalf("unexpected event %+v", event)
	}
	raw, _ := json.Marshal(event.Data)
	var view roomView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if view.Me == nil || view.Me.ID != aria.ID {
		t.Errorf("expected Aria's view, got %+v", view.Me)
	}

	ws.handleClientMessage(c, ClientMessage{Action: "sync", RoomID: "someone-elses-room"})
	select {
	case <-c.send:
		t.Error("snapshot of a foreign room must not be sent")
	default:
	}
}
