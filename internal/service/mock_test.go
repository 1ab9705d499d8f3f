package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	redisrepo "github.com/laby37200-cell/civilization-forge-sub000/internal/repository/redis"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/sandbox"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// mockWorldStore keeps rooms as flattened records so every load returns a
// fresh copy, the way a database would.
type mockWorldStore struct {
	mu    sync.Mutex
	rooms map[string]realm.Room
	recs  map[string][]repository.Record
	saves int
}

func newMockWorldStore() *mockWorldStore {
	return &mockWorldStore{rooms: make(map[string]realm.Room), recs: make(map[string][]repository.Record)}
}

func (m *mockWorldStore) put(w *realm.World) error {
	recs, err := repository.Flatten(w)
	if err != nil {
		return err
	}
	m.rooms[w.Room.ID] = w.Room
	m.recs[w.Room.ID] = recs
	return nil
}

func (m *mockWorldStore) CreateRoom(_ context.Context, w *realm.World) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[w.Room.ID]; ok {
		return repository.ErrDuplicate
	}
	return m.put(w)
}

func (m *mockWorldStore) LoadWorld(_ context.Context, roomID string) (*realm.World, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return repository.Assemble(room, m.recs[roomID])
}

func (m *mockWorldStore) SaveWorld(_ context.Context, w *realm.World) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[w.Room.ID]; !ok {
		return repository.ErrNotFound
	}
	m.saves++
	return m.put(w)
}

func (m *mockWorldStore) ListRooms(_ context.Context, status realm.RoomStatus) ([]realm.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []realm.Room
	for _, r := range m.rooms {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockWorldStore) ListDue(_ context.Context, now time.Time) ([]realm.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []realm.Room
	for _, r := range m.rooms {
		if r.Status == realm.RoomPlaying && !r.Deadline.IsZero() && !r.Deadline.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mockNewsStore struct {
	mu   sync.Mutex
	news map[string][]realm.News
}

func newMockNewsStore() *mockNewsStore {
	return &mockNewsStore{news: make(map[string][]realm.News)}
}

func (m *mockNewsStore) AppendNews(_ context.Context, roomID string, news []realm.News) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.news[roomID] = append(m.news[roomID], news...)
	return nil
}

func (m *mockNewsStore) NewsSince(_ context.Context, roomID string, sinceTurn int, p realm.PlayerID) ([]realm.News, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []realm.News
	for _, n := range m.news[roomID] {
		if n.Turn >= sinceTurn && n.VisibleTo(p) {
			out = append(out, n)
		}
	}
	return out, nil
}

type mockArchive struct {
	mu       sync.Mutex
	outcomes []realm.SubmissionOutcome
}

func (m *mockArchive) Archive(_ context.Context, _ string, _ []realm.Submission, outcomes []realm.SubmissionOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcomes...)
	return nil
}

type broadcastEvent struct {
	roomID, eventType string
	data              any
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (m *mockBroadcaster) BroadcastRoomEvent(roomID, eventType string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, broadcastEvent{roomID, eventType, data})
}

func (m *mockBroadcaster) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// fixedPlanner returns one tax action for every AI it is asked about.
type fixedPlanner struct{}

func (fixedPlanner) PlanTurn(_ context.Context, _ *realm.World, _ realm.PlayerID) []realm.Action {
	return []realm.Action{realm.TaxAction{Rate: 0.3}}
}

// testEnv wires a TurnService to in-memory stores and a miniredis-backed
// action queue and clock.
type testEnv struct {
	worlds *mockWorldStore
	news   *mockNewsStore
	arch   *mockArchive
	bc     *mockBroadcaster
	redis  *redisrepo.Client
	mr     *miniredis.Miniredis
	turns  *TurnService
}

func newTestEnv(t *testing.T, planner realm.Planner) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	e := &testEnv{
		worlds: newMockWorldStore(),
		news:   newMockNewsStore(),
		arch:   &mockArchive{},
		bc:     &mockBroadcaster{},
		redis:  redisrepo.Wrap(rdb),
		mr:     mr,
	}
	e.turns = NewTurnService(TurnDeps{
		Worlds:      e.worlds,
		News:        e.news,
		Queue:       e.redis,
		Clock:       e.redis,
		Archive:     e.arch,
		Memory:      e.redis,
		Planner:     planner,
		Broadcaster: e.bc,
	})
	return e
}

// seedRoom stores a small generated playing room with one human seat.
func (e *testEnv) seedRoom(t *testing.T, id string) *realm.World {
	t.Helper()
	cfg := sandbox.DefaultGenConfig()
	cfg.Radius = 10
	cfg.Seed = 17
	cfg.Nations = []sandbox.Nation{
		{Name: "Aria", UserID: "user-aria"},
		{Name: "Boros", IsAI: true, Difficulty: realm.Normal},
		{Name: "Cyra", IsAI: true, Difficulty: realm.Hard},
	}
	w, err := sandbox.Generate(id, "Room "+id, cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	w.Room.Deadline = time.Now().Add(-time.Second)
	if err := e.worlds.CreateRoom(context.Background(), w); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return w
}

func (e *testEnv) world(t *testing.T, id string) *realm.World {
	t.Helper()
	w, err := e.worlds.LoadWorld(context.Background(), id)
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return w
}

func humanOf(t *testing.T, w *realm.World) *realm.Player {
	t.Helper()
	for _, p := range w.Players {
		if !p.IsAI {
			return p
		}
	}
	t.Fatal("no human seat")
	return nil
}
