package realm

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Arena identifiers. Every entity of a room draws its id from Room.NextID.
type (
	PlayerID      int64
	TileID        int64
	CityID        int64
	UnitID        int64
	SpyID         int64
	TradeID       int64
	BattlefieldID int64
	EngagementID  int64
	AutoMoveID    int64
)

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomLobby   RoomStatus = "lobby"
	RoomPlaying RoomStatus = "playing"
	RoomEnded   RoomStatus = "ended"
)

// Phase is one of the three ordered steps of a turn.
type Phase string

const (
	PhaseNone       Phase = ""
	PhaseTurnStart  Phase = "turn_start"
	PhaseActions    Phase = "actions"
	PhaseResolution Phase = "resolution"
)

// RoomConfig holds per-room tunables.
type RoomConfig struct {
	TradeExpiryTurns      int           `json:"tradeExpiryTurns"`
	EngagementExpiryTurns int           `json:"engagementExpiryTurns"`
	MaxTurns              int           `json:"maxTurns"`
	DominationShare       float64       `json:"dominationShare"`
	JudgeTimeout          time.Duration `json:"judgeTimeout"`
	TurnDuration          time.Duration `json:"turnDuration"`
}

// DefaultRoomConfig returns the standard room settings.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		TradeExpiryTurns:      3,
		EngagementExpiryTurns: 3,
		MaxTurns:              100,
		DominationShare:       0.6,
		JudgeTimeout:          3 * time.Second,
		TurnDuration:          2 * time.Minute,
	}
}

// Room is the per-room header: status, turn counter and id sequence.
type Room struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Status    RoomStatus            `json:"status"`
	Turn      int                   `json:"turn"`
	Phase     Phase                 `json:"phase"`
	Seed      int64                 `json:"seed"`
	NextID    int64                 `json:"nextId"`
	Deadline  time.Time             `json:"deadline"`
	Config    RoomConfig            `json:"config"`
	Market    map[Specialty]float64 `json:"market,omitempty"`
	Victory   *Victory              `json:"victory,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
}

// Tile is one hex cell of the map.
type Tile struct {
	ID      TileID   `json:"id"`
	Coord   Hex      `json:"coord"`
	Terrain Terrain  `json:"terrain"`
	Owner   PlayerID `json:"owner,omitempty"`
	City    CityID   `json:"city,omitempty"`
	Troops  int      `json:"troops"`
	// Visible holds every player that has discovered the tile. It only grows.
	Visible map[PlayerID]bool `json:"visible,omitempty"`
	// Sight holds the players watching the tile as of the last fog pass.
	Sight map[PlayerID]bool `json:"sight,omitempty"`
}

// VisibleTo reports whether p has discovered the tile.
func (t *Tile) VisibleTo(p PlayerID) bool { return t.Visible[p] }

// InSight reports whether p watches the tile right now.
func (t *Tile) InSight(p PlayerID) bool { return t.Sight[p] }

func (t *Tile) reveal(p PlayerID) {
	if t.Visible == nil {
		t.Visible = make(map[PlayerID]bool)
	}
	if t.Sight == nil {
		t.Sight = make(map[PlayerID]bool)
	}
	t.Visible[p] = true
	t.Sight[p] = true
}

// Difficulty bounds how many actions an AI commits per turn.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Normal Difficulty = "normal"
	Hard   Difficulty = "hard"
)

// Player is a participant in a room, human or AI.
type Player struct {
	ID             PlayerID   `json:"id"`
	Name           string     `json:"name"`
	Nation         string     `json:"nation"`
	Gold           int        `json:"gold"`
	Food           int        `json:"food"`
	EspionagePower int        `json:"espionagePower"`
	IsAI           bool       `json:"isAi"`
	Difficulty     Difficulty `json:"difficulty,omitempty"`
	Eliminated     bool       `json:"eliminated"`
	Rebel          bool       `json:"rebel,omitempty"`
	UserID         string     `json:"userId,omitempty"`
}

// World is the full state of one room, held as an arena of id-keyed
// records with lookup indexes rebuilt by Reindex.
type World struct {
	Room         Room           `json:"room"`
	Tiles        []*Tile        `json:"tiles"`
	Units        []*Unit        `json:"units"`
	Cities       []*City        `json:"cities"`
	Players      []*Player      `json:"players"`
	Relations    []*Relation    `json:"relations"`
	Trades       []*Trade       `json:"trades"`
	Spies        []*SpyAgent    `json:"spies"`
	Battlefields []*Battlefield `json:"battlefields"`
	Engagements  []*Engagement  `json:"engagements"`
	AutoMoves    []*AutoMove    `json:"autoMoves"`

	tileByID   map[TileID]*Tile
	tileAt     map[Hex]*Tile
	cityByID   map[CityID]*City
	playerByID map[PlayerID]*Player
	unitsOn    map[TileID][]*Unit
	relations  map[pairKey]*Relation
	// assumedWar marks pairs treated as at war while an attack is planned.
	assumedWar map[pairKey]bool
}

// NewWorld returns an empty world for the given room.
func NewWorld(room Room) *World {
	if room.NextID == 0 {
		room.NextID = 1
	}
	if room.Market == nil {
		room.Market = make(map[Specialty]float64)
		for _, s := range Specialties {
			room.Market[s] = 1.0
		}
	}
	w := &World{Room: room}
	w.Reindex()
	return w
}

// NextID allocates a fresh arena id.
func (w *World) NextID() int64 {
	if w.Room.NextID == 0 {
		w.Room.NextID = 1
	}
	id := w.Room.NextID
	w.Room.NextID++
	return id
}

// Reindex rebuilds lookup maps, drops empty unit stacks and refreshes
// every tile's troop cache.
func (w *World) Reindex() {
	w.tileByID = make(map[TileID]*Tile, len(w.Tiles))
	w.tileAt = make(map[Hex]*Tile, len(w.Tiles))
	for _, t := range w.Tiles {
		w.tileByID[t.ID] = t
		w.tileAt[t.Coord] = t
	}
	w.cityByID = make(map[CityID]*City, len(w.Cities))
	for _, c := range w.Cities {
		w.cityByID[c.ID] = c
	}
	w.playerByID = make(map[PlayerID]*Player, len(w.Players))
	for _, p := range w.Players {
		w.playerByID[p.ID] = p
	}
	w.relations = make(map[pairKey]*Relation, len(w.Relations))
	for _, r := range w.Relations {
		w.relations[makePair(r.A, r.B)] = r
	}

	live := w.Units[:0]
	for _, u := range w.Units {
		if u.Count > 0 {
			live = append(live, u)
		}
	}
	for i := len(live); i < len(w.Units); i++ {
		w.Units[i] = nil
	}
	w.Units = live
	sortUnits(w.Units)

	w.unitsOn = make(map[TileID][]*Unit)
	for _, u := range w.Units {
		w.unitsOn[u.Tile] = append(w.unitsOn[u.Tile], u)
	}
	w.refreshTroopCache()
}

func (w *World) refreshTroopCache() {
	for _, t := range w.Tiles {
		t.Troops = 0
	}
	for _, u := range w.Units {
		if t := w.tileByID[u.Tile]; t != nil && u.Type.Fights() {
			t.Troops += u.Count
		}
	}
}

// Tile returns the tile with the given id, or nil.
func (w *World) Tile(id TileID) *Tile { return w.tileByID[id] }

// TileAt returns the tile at a coordinate, or nil.
func (w *World) TileAt(h Hex) *Tile { return w.tileAt[h] }

// City returns the city with the given id, or nil.
func (w *World) City(id CityID) *City { return w.cityByID[id] }

// Player returns the player with the given id, or nil.
func (w *World) Player(id PlayerID) *Player { return w.playerByID[id] }

// AddTile appends a tile and indexes it.
func (w *World) AddTile(coord Hex, terrain Terrain) *Tile {
	t := &Tile{ID: TileID(w.NextID()), Coord: coord, Terrain: terrain}
	w.Tiles = append(w.Tiles, t)
	w.tileByID[t.ID] = t
	w.tileAt[coord] = t
	return t
}

// AddPlayer appends a player and indexes it.
func (w *World) AddPlayer(p Player) *Player {
	if p.ID == 0 {
		p.ID = PlayerID(w.NextID())
	}
	pp := &p
	w.Players = append(w.Players, pp)
	w.playerByID[pp.ID] = pp
	return pp
}

// NeighborTiles returns the existing tiles adjacent to t.
func (w *World) NeighborTiles(t *Tile) []*Tile {
	var out []*Tile
	for _, h := range t.Coord.Neighbors() {
		if n := w.tileAt[h]; n != nil {
			out = append(out, n)
		}
	}
	return out
}

// TilesWithin returns the existing tiles within radius of center.
func (w *World) TilesWithin(center Hex, radius int) []*Tile {
	var out []*Tile
	for _, h := range center.WithinRadius(radius) {
		if t := w.tileAt[h]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

// UnitsOn returns the live stacks on a tile in id order.
func (w *World) UnitsOn(tile TileID) []*Unit {
	var out []*Unit
	for _, u := range w.unitsOn[tile] {
		if u.Count > 0 {
			out = append(out, u)
		}
	}
	return out
}

// TroopsOf returns p's fighting troops on a tile.
func (w *World) TroopsOf(p PlayerID, tile TileID) Troops {
	out := make(Troops)
	for _, u := range w.unitsOn[tile] {
		if u.Owner == p && u.Count > 0 && u.Type.Fights() {
			out[u.Type] += u.Count
		}
	}
	return out
}

// OccupantsOf returns the distinct owners with troops on a tile, sorted.
func (w *World) OccupantsOf(tile TileID) []PlayerID {
	seen := make(map[PlayerID]bool)
	var out []PlayerID
	for _, u := range w.unitsOn[tile] {
		if u.Count > 0 && u.Type.Fights() && !seen[u.Owner] {
			seen[u.Owner] = true
			out = append(out, u.Owner)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TotalTroops returns every fighting unit p owns.
func (w *World) TotalTroops(p PlayerID) int {
	n := 0
	for _, u := range w.Units {
		if u.Owner == p && u.Type.Fights() {
			n += u.Count
		}
	}
	return n
}

// stack returns p's stack of type ut on tile, creating it when missing.
func (w *World) stack(p PlayerID, tile TileID, ut UnitType, origin CityID) *Unit {
	for _, u := range w.unitsOn[tile] {
		if u.Owner == p && u.Type == ut {
			return u
		}
	}
	u := &Unit{ID: UnitID(w.NextID()), Owner: p, Tile: tile, Origin: origin, Type: ut, Morale: 100}
	w.Units = append(w.Units, u)
	w.unitsOn[tile] = append(w.unitsOn[tile], u)
	return u
}

// AddUnits places n units of type ut for p on a tile.
func (w *World) AddUnits(p PlayerID, tile TileID, ut UnitType, n int, origin CityID) {
	if n <= 0 {
		return
	}
	w.stack(p, tile, ut, origin).Count += n
	if t := w.tileByID[tile]; t != nil && ut.Fights() {
		t.Troops += n
	}
}

// removeUnits takes up to n units of type ut from p's stack and returns
// how many were taken.
func (w *World) removeUnits(p PlayerID, tile TileID, ut UnitType, n int) int {
	taken := 0
	for _, u := range w.unitsOn[tile] {
		if u.Owner != p || u.Type != ut || u.Count == 0 {
			continue
		}
		k := min(n-taken, u.Count)
		u.Count -= k
		taken += k
		if taken == n {
			break
		}
	}
	if t := w.tileByID[tile]; t != nil && ut.Fights() {
		t.Troops -= taken
	}
	return taken
}

// transferUnits moves a group from one tile to another without changing
// the system-wide count.
func (w *World) transferUnits(p PlayerID, from, to TileID, group Troops) {
	for _, ut := range group.Types() {
		origin := CityID(0)
		for _, u := range w.unitsOn[from] {
			if u.Owner == p && u.Type == ut {
				origin = u.Origin
			}
		}
		moved := w.removeUnits(p, from, ut, group[ut])
		w.AddUnits(p, to, ut, moved, origin)
	}
}

// ActivePlayers returns players who have not been eliminated, in id order.
func (w *World) ActivePlayers() []*Player {
	var out []*Player
	for _, p := range w.Players {
		if !p.Eliminated {
			out = append(out, p)
		}
	}
	return out
}

// CitiesOf returns the cities owned by p, in id order.
func (w *World) CitiesOf(p PlayerID) []*City {
	var out []*City
	for _, c := range w.Cities {
		if c.Owner == p {
			out = append(out, c)
		}
	}
	return out
}

// phaseRand returns the deterministic source for one phase of the current turn.
func (w *World) phaseRand(phase Phase) *rand.Rand {
	salt := int64(len(phase)) * 7919
	for _, c := range phase {
		salt = salt*31 + int64(c)
	}
	return rand.New(rand.NewSource(w.Room.Seed ^ int64(w.Room.Turn)*1_000_003 ^ salt))
}

func (w *World) String() string {
	return fmt.Sprintf("room %s turn %d (%s)", w.Room.ID, w.Room.Turn, w.Room.Status)
}
