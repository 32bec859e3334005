package api

import (
	"net/http"

	"dormdesk/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) complianceRoutes(r chi.Router) {
	r.Group(func(pr chi.Router) {
		pr.Use(RequirePermission(models.PermViewCompliance))
		pr.Get("/", s.handleListTickets)
		pr.Get("/{id}", s.handleGetTicket)
	})
	r.Group(func(pr chi.Router) {
		pr.Use(RequirePermission(models.PermManageCompliance))
		pr.Post("/", s.handleCreateTicket)
		pr.Put("/{id}", s.handleUpdateTicket)
		pr.Patch("/{id}/status", s.handleTicketStatus)
	})
}

func (s *HTTPServer) handleListTickets(w http.ResponseWriter, r *http.Request) {
	filter := models.TicketFilter{
		Status:   models.TicketStatus(queryString(r, "status")),
		Priority: models.TicketPriority(queryString(r, "priority")),
		Category: queryString(r, "category"),
		Building: queryString(r, "building"),
		Search:   queryString(r, "search"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}
	tickets, total, err := s.deps.Compliance.ListTickets(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeList(w, tickets, total)
}

func (s *HTTPServer) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.deps.Compliance.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *HTTPServer) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var in models.TicketInput
	form, err := s.readForm(w, r, "images", &in)
	if err != nil {
		writeFormError(w, err)
		return
	}
	defer form.Close()

	uploads, err := form.uploads()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticket, err := s.deps.Compliance.CreateTicket(r.Context(), in, uploads, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (s *HTTPServer) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	var in models.TicketInput
	form, err := s.readForm(w, r, "images", &in)
	if err != nil {
		writeFormError(w, err)
		return
	}
	defer form.Close()

	uploads, err := form.uploads()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticket, err := s.deps.Compliance.UpdateTicket(r.Context(), chi.URLParam(r, "id"), in, uploads, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *HTTPServer) handleTicketStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.TicketStatus `json:"status"`
		Notes  string              `json:"notes"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticket, err := s.deps.Compliance.ChangeTicketStatus(r.Context(), chi.URLParam(r, "id"), body.Status, body.Notes, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}
