package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/logger"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/repository"
	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotInRoom):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrRoomNotPlaying), errors.Is(err, service.ErrRoomNotInLobby),
		errors.Is(err, service.ErrWrongTurn), errors.Is(err, repository.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidAction):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		l := logger.ForRequest(r.Context())
		l.Error().Err(err).Msg("Request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
