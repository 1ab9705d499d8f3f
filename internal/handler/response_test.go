package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/laby37200-cell/civilization-forge-sub000/internal/service"
	"github.com/laby37200-cell/civilization-forge-sub000/pkg/realm"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, realm.Room{ID: "r1", Status: realm.RoomLobby})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type=application/json, got %s", ct)
	}
	var room realm.Room
	if err := json.Unmarshal(rec.Body.Bytes(), &room); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if room.ID != "r1" || room.Status != realm.RoomLobby {
		t.Errorf("unexpected body: %+v", room)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "turn is required")

	var result map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.Code != http.StatusBadRequest || result["error"] != "turn is required" {
		t.Errorf("unexpected response %d %v", rec.Code, result)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"action", `{"turn":2,"actionType":"tax","data":{"rate":0.3}}`, false},
		{"not json", "not json", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var in service.ActionInput
			err := decodeJSON(req, &in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (in.Turn != 2 || in.Type != realm.ActionTax || len(in.Data) == 0) {
				t.Errorf("unexpected input %+v", in)
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrRoomNotFound, http.StatusNotFound},
		{service.ErrNotInRoom, http.StatusForbidden},
		{fmt.Errorf("%w: room is on turn 4", service.ErrWrongTurn), http.StatusConflict},
		{service.ErrRoomNotPlaying, http.StatusConflict},
		{service.ErrRoomNotInLobby, http.StatusConflict},
		{fmt.Errorf("%w: bad rate", service.ErrInvalidAction), http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("internal error leaked: %s", rec.Body.String())
	}
}
