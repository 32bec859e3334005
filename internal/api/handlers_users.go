package api

import (
	"net/http"

	"dormdesk/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) userRoutes(r chi.Router) {
	r.Use(RequirePermission(models.PermManageUsers))
	r.Get("/", s.handleListUsers)
	r.Get("/{id}", s.handleGetUser)
	r.Post("/", s.handleCreateUser)
	r.Put("/{id}", s.handleUpdateUser)
	r.Patch("/{id}/active", s.handleUserActive)
	r.Delete("/{id}", s.handleDeleteUser)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	filter := models.UserFilter{
		Role:   models.Role(queryString(r, "role")),
		Active: queryBool(r, "active"),
		Search: queryString(r, "search"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	users, total, err := s.deps.Users.ListUsers(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeList(w, users, total)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in models.UserInput
	if err := decodeJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.deps.Users.CreateUser(r.Context(), in, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in models.UserInput
	if err := decodeJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.deps.Users.UpdateUser(r.Context(), chi.URLParam(r, "id"), in, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUserActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.IsActive == nil {
		writeError(w, http.StatusBadRequest, "isActive is required")
		return
	}
	user, err := s.deps.Users.SetUserActive(r.Context(), chi.URLParam(r, "id"), *body.IsActive, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Users.DeleteUser(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
