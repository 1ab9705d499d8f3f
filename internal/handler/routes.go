package handler

import "net/http"

// RegisterRoutes mounts the authenticated room API on api. Paths are
// relative to the /api/v1 prefix.
func RegisterRoutes(api *http.ServeMux, rooms *RoomHandler, actions *ActionHandler) {
	api.HandleFunc("POST /rooms", rooms.CreateRoom)
	api.HandleFunc("GET /rooms", rooms.ListRooms)
	api.HandleFunc("GET /rooms/{id}", rooms.GetRoom)
	api.HandleFunc("POST /rooms/{id}/start", rooms.StartRoom)
	api.HandleFunc("POST /rooms/{id}/seats", rooms.IssueUserSeat)
	api.HandleFunc("POST /rooms/{id}/seats/{playerId}", rooms.IssueSeat)
	api.HandleFunc("POST /rooms/{id}/actions", actions.SubmitAction)
	api.HandleFunc("GET /rooms/{id}/actions", actions.PendingActions)
	api.HandleFunc("GET /rooms/{id}/news", actions.News)
}
