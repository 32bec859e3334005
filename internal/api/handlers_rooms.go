package api

import (
	"net/http"

	"dormdesk/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) roomRoutes(r chi.Router) {
	r.Group(func(pr chi.Router) {
		pr.Use(RequirePermission(models.PermViewRooms))
		pr.Get("/", s.handleListRooms)
		pr.Get("/{id}", s.handleGetRoom)
	})
	r.Group(func(pr chi.Router) {
		pr.Use(RequirePermission(models.PermManageRooms))
		pr.Post("/", s.handleCreateRoom)
		pr.Put("/{id}", s.handleUpdateRoom)
		pr.Delete("/{id}", s.handleDeleteRoom)
	})
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	filter := models.RoomFilter{
		Building: queryString(r, "building"),
		Type:     models.RoomType(queryString(r, "type")),
		Status:   models.RoomStatus(queryString(r, "status")),
		Search:   queryString(r, "search"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}
	rooms, total, err := s.deps.Rooms.ListRooms(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeList(w, rooms, total)
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.deps.Rooms.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var in models.RoomInput
	if err := decodeJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := s.deps.Rooms.CreateRoom(r.Context(), in, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	var in models.RoomInput
	if err := decodeJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := s.deps.Rooms.UpdateRoom(r.Context(), chi.URLParam(r, "id"), in, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Rooms.DeleteRoom(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
