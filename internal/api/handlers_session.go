package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/go-chi/chi/v5"
)

type loginResponse struct {
	Token   string          `json:"token"`
	Session *models.Session `json:"session"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, token, err := s.deps.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Session: session})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	if p == nil || p.Session == nil {
		writeError(w, http.StatusBadRequest, "no session to end")
		return
	}
	if err := s.deps.Auth.Logout(r.Context(), p.Session); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	if p.Session != nil {
		writeJSON(w, http.StatusOK, p.Session)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"client":      p.ClientName,
		"permissions": p.Permissions,
	})
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rng := models.TimeRange(strings.ToLower(queryString(r, "range")))
	if rng == "" {
		rng = models.RangeMonth
	}
	dash, err := s.deps.Dashboard.Build(r.Context(), rng)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// handleFile streams an upload kept by a local driver.
func (s *HTTPServer) handleFile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Files == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	meta, body, err := s.deps.Files.OpenFile(r.Context(), chi.URLParam(r, "bucket"), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeServiceError(w, r, s.logger, err)
		return
	}
	defer body.Close()

	contentType := meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn().Err(err).Str("file_id", meta.ID).Msg("Failed to stream file")
	}
}
