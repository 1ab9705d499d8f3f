package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/auth"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/sandbox"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// RoomHandler handles room lifecycle endpoints.
type RoomHandler struct {
	rooms  *service.RoomService
	jwtMgr *auth.JWTManager
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(rooms *service.RoomService, jwtMgr *auth.JWTManager) *RoomHandler {
	return &RoomHandler{rooms: rooms, jwtMgr: jwtMgr}
}

type nationRequest struct {
	Name       string           `json:"name"`
	IsAI       bool             `json:"isAi"`
	Difficulty realm.Difficulty `json:"difficulty"`
	UserID     string           `json:"userId"`
}

type createRoomRequest struct {
	Name            string          `json:"name"`
	Radius          int             `json:"radius"`
	Seed            int64           `json:"seed"`
	StartGold       int             `json:"startGold"`
	StartFood       int             `json:"startFood"`
	CitiesPerNation *int            `json:"citiesPerNation"`
	Nations         []nationRequest `json:"nations"`
}

// genConfig fills unset fields from the default map.
func (req createRoomRequest) genConfig() sandbox.GenConfig {
	cfg := sandbox.DefaultGenConfig()
	if req.Radius > 0 {
		cfg.Radius = req.Radius
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	} else {
		cfg.Seed = time.Now().UnixNano()
	}
	if req.StartGold > 0 {
		cfg.StartGold = req.StartGold
	}
	if req.StartFood > 0 {
		cfg.StartFood = req.StartFood
	}
	if req.CitiesPerNation != nil {
		cfg.CitiesPerNation = *req.CitiesPerNation
	}
	if len(req.Nations) > 0 {
		cfg.Nations = cfg.Nations[:0:0]
		for _, n := range req.Nations {
			cfg.Nations = append(cfg.Nations, sandbox.Nation{Name: n.Name, IsAI: n.IsAI, Difficulty: n.Difficulty, UserID: n.UserID})
		}
	}
	return cfg
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	seat, ok := auth.SeatFromContext(r.Context())
	if !ok || !seat.Admin {
		writeError(w, http.StatusForbidden, "admin token required")
		return false
	}
	return true
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	world, err := h.rooms.CreateRoom(r.Context(), req.Name, req.genConfig())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, world.Room)
}

// ListRooms handles GET /rooms?status=.
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListRooms(r.Context(), realm.RoomStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []realm.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// GetRoom handles GET /rooms/{id}. Seats get their fogged view, admins the whole world.
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	seat, ok := auth.SeatFromContext(r.Context())
	if !ok || (!seat.Admin && seat.RoomID != roomID) {
		writeServiceError(w, r, service.ErrNotInRoom)
		return
	}
	world, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if seat.Admin {
		writeJSON(w, http.StatusOK, world)
		return
	}
	writeJSON(w, http.StatusOK, buildRoomView(world, realm.PlayerID(seat.PlayerID)))
}

// StartRoom handles POST /rooms/{id}/start.
func (h *RoomHandler) StartRoom(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	world, err := h.rooms.StartRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, world.Room)
}

// IssueSeat handles POST /rooms/{id}/seats/{playerId}: signs a token for a human seat.
func (h *RoomHandler) IssueSeat(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	playerID, err := strconv.ParseInt(r.PathValue("playerId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	world, err := h.rooms.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	p := world.Player(realm.PlayerID(playerID))
	if p == nil || p.IsAI {
		writeError(w, http.StatusNotFound, "no human seat with that id")
		return
	}
	token, err := h.jwtMgr.IssueSeat(world.Room.ID, playerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "playerId": playerID, "roomId": world.Room.ID})
}

// IssueUserSeat handles POST /rooms/{id}/seats with {"userId": ...}: finds
// the human seat reserved for that user and signs its token.
func (h *RoomHandler) IssueUserSeat(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	world, err := h.rooms.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := service.SeatOf(world, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	token, err := h.jwtMgr.IssueSeat(world.Room.ID, int64(p.ID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "playerId": p.ID, "roomId": world.Room.ID})
}
