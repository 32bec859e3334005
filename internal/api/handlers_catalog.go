package api

import (
	"net/http"

	"dormdesk/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *HTTPServer) catalogRoutes(r chi.Router) {
	r.Group(func(pr chi.Router) {
		pr.Use(RequirePermission(models.PermViewServices))
		pr.Get("/", s.handleListServices)
		pr.Get("/{id}", s.handleGetService)
	})
	r.Group(func(pr chi.Router) {
		pr.Use(RequirePermission(models.PermManageServices))
		pr.Post("/", s.handleCreateService)
		pr.Put("/{id}", s.handleUpdateService)
		pr.Patch("/{id}/availability", s.handleServiceAvailability)
		pr.Delete("/{id}", s.handleDeleteService)
	})
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	filter := models.CatalogFilter{
		Type:      queryString(r, "type"),
		Available: queryBool(r, "available"),
		Search:    queryString(r, "search"),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	}
	items, total, err := s.deps.Catalog.ListServices(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeList(w, items, total)
}

func (s *HTTPServer) handleGetService(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.Catalog.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// catalogForm reads the service payload and at most one image.
func (s *HTTPServer) catalogForm(w http.ResponseWriter, r *http.Request) (models.CatalogInput, *models.Upload, *parsedForm, bool) {
	var in models.CatalogInput
	form, err := s.readForm(w, r, "image", &in)
	if err != nil {
		writeFormError(w, err)
		return in, nil, nil, false
	}
	uploads, err := form.uploads()
	if err != nil {
		form.Close()
		writeError(w, http.StatusBadRequest, err.Error())
		return in, nil, nil, false
	}
	var image *models.Upload
	if len(uploads) > 0 {
		image = &uploads[0]
	}
	return in, image, form, true
}

func (s *HTTPServer) handleCreateService(w http.ResponseWriter, r *http.Request) {
	in, image, form, ok := s.catalogForm(w, r)
	if !ok {
		return
	}
	defer form.Close()

	item, err := s.deps.Catalog.CreateService(r.Context(), in, image, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	in, image, form, ok := s.catalogForm(w, r)
	if !ok {
		return
	}
	defer form.Close()

	item, err := s.deps.Catalog.UpdateService(r.Context(), chi.URLParam(r, "id"), in, image, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleServiceAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsAvailable *bool `json:"isAvailable"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.IsAvailable == nil {
		writeError(w, http.StatusBadRequest, "isAvailable is required")
		return
	}
	item, err := s.deps.Catalog.SetServiceAvailability(r.Context(), chi.URLParam(r, "id"), *body.IsAvailable, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.DeleteService(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
