package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/Tyrowin/roomhub/internal/hub"
)

// RoomsResponse is the body of GET /rooms.
type RoomsResponse struct {
	Rooms []string `json:"rooms"`
}

// RoomResponse is the body of GET /rooms/{room}.
type RoomResponse struct {
	Room    string   `json:"room"`
	Members []string `json:"members"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WebSocketHandler upgrades the request and starts a session for it.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	logger := logr.FromContextOrDiscard(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error response.
		logger.Info("websocket upgrade failed", "reason", err.Error())
		return
	}

	s.startClient(NewClient(conn, s.hub, r.RemoteAddr, s.cfg, s.logger))
}

// HealthHandler responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomhub server is running!")
}

// ListRoomsHandler reports every known room.
func (s *Server) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, RoomsResponse{Rooms: s.hub.ListRooms()})
}

// RoomHandler reports the members of one room.
func (s *Server) RoomHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "room")

	ids, ok := s.hub.Members(name)
	if !ok {
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{
			Code:    http.StatusNotFound,
			Message: fmt.Sprintf("room %q not found", name),
		})
		return
	}

	writeJSON(w, r, http.StatusOK, RoomResponse{Room: name, Members: sessionStrings(ids)})
}

// StatsHandler reports hub counters.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.hub.Stats())
}

func sessionStrings(ids []hub.SessionID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logr.FromContextOrDiscard(r.Context()).Error(err, "write json response")
	}
}
