package handler

import (
	"net/http"
	"strconv"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/auth"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

// ActionHandler handles action submission and news endpoints for a seat.
type ActionHandler struct {
	actions *service.ActionService
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(actions *service.ActionService) *ActionHandler {
	return &ActionHandler{actions: actions}
}

// seatIn returns the caller's player id when their seat is in the path room.
func seatIn(w http.ResponseWriter, r *http.Request) (string, realm.PlayerID, bool) {
	roomID := r.PathValue("id")
	seat, ok := auth.SeatFromContext(r.Context())
	if !ok || seat.Admin || seat.RoomID != roomID {
		writeServiceError(w, r, service.ErrNotInRoom)
		return "", 0, false
	}
	return roomID, realm.PlayerID(seat.PlayerID), true
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SubmitAction handles POST /rooms/{id}/actions.
func (h *ActionHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	roomID, player, ok := seatIn(w, r)
	if !ok {
		return
	}
	var in service.ActionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub, err := h.actions.Submit(r.Context(), roomID, player, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

// PendingActions handles GET /rooms/{id}/actions?turn=.
func (h *ActionHandler) PendingActions(w http.ResponseWriter, r *http.Request) {
	roomID, player, ok := seatIn(w, r)
	if !ok {
		return
	}
	turn, ok := queryInt(r, "turn")
	if !ok || turn == 0 {
		writeError(w, http.StatusBadRequest, "turn is required")
		return
	}
	subs, err := h.actions.Pending(r.Context(), roomID, player, turn)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if subs == nil {
		subs = []realm.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// News handles GET /rooms/{id}/news?since=.
func (h *ActionHandler) News(w http.ResponseWriter, r *http.Request) {
	roomID, player, ok := seatIn(w, r)
	if !ok {
		return
	}
	since, ok := queryInt(r, "since")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	news, err := h.actions.News(r.Context(), roomID, player, since)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if news == nil {
		news = []realm.News{}
	}
	writeJSON(w, http.StatusOK, news)
}
