package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// RoomHandler exposes read-only room lookups so clients can validate a join code.
type RoomHandler struct {
	service *app.RoomService
}

func NewRoomHandler(service *app.RoomService) *RoomHandler {
	return &RoomHandler{service: service}
}

func (h *RoomHandler) ServeLookup(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.Lookup(r.Context(), r.PathValue("code"))
	if errors.Is(err, domain.ErrRoomNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(room.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("write room snapshot")
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

// ServeHealth reports liveness together with the live-room count.
func (h *RoomHandler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok", Rooms: h.service.LiveRooms()}); err != nil {
		log.Warn().Err(err).Msg("write health")
	}
}

// NewRouter wires health, lookup and websocket routes.
func NewRouter(service *app.RoomService, allowedOrigins []string) http.Handler {
	wsHandler := NewWSHandler(service, allowedOrigins)
	roomHandler := NewRoomHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", roomHandler.ServeHealth)
	mux.HandleFunc("GET /rooms/{code}", roomHandler.ServeLookup)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)
}
