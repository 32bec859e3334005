package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"dormdesk/internal/models"

	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

func (s *HTTPServer) checkoutRoutes(r chi.Router) {
	r.Group(func(pr chi.Router) {
		pr.Use(RequirePermission(models.PermViewCheckout))
		pr.Get("/", s.handleListCheckouts)
		pr.Get("/{id}", s.handleGetCheckout)
	})
	r.Group(func(pr chi.Router) {
		pr.Use(RequirePermission(models.PermManageCheckout))
		pr.Post("/", s.handleCreateCheckout)
		pr.Post("/{id}/approve", s.handleCheckoutAction("approve"))
		pr.Post("/{id}/reject", s.handleCheckoutAction("reject"))
		pr.Post("/{id}/complete", s.handleCheckoutAction("complete"))
	})
}

func (s *HTTPServer) handleListCheckouts(w http.ResponseWriter, r *http.Request) {
	filter := models.CheckoutFilter{
		Status: models.CheckoutStatus(queryString(r, "status")),
		UserID: queryString(r, "userId"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := queryString(r, name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name+" date; expected YYYY-MM-DD")
			return
		}
		*dst = t
	}
	if !filter.To.IsZero() {
		// inclusive of the whole day
		filter.To = filter.To.Add(24*time.Hour - time.Nanosecond)
	}

	items, total, err := s.deps.Checkout.ListCheckouts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeList(w, items, total)
}

func (s *HTTPServer) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.Checkout.GetCheckout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var in models.CheckoutInput
	if err := decodeJSON(r.Body, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.deps.Checkout.CreateCheckout(r.Context(), in, actorFrom(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleCheckoutAction serves approve, reject and complete. The body carries
// optional notes; for reject they are the required reason.
func (s *HTTPServer) handleCheckoutAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Notes  string `json:"notes"`
			Reason string `json:"reason"`
		}
		if err := decodeJSON(r.Body, &body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		id, actor := chi.URLParam(r, "id"), actorFrom(r)
		var (
			item *models.CheckoutView
			err  error
		)
		switch action {
		case "approve":
			item, err = s.deps.Checkout.ApproveCheckout(r.Context(), id, body.Notes, actor)
		case "reject":
			reason := body.Reason
			if reason == "" {
				reason = body.Notes
			}
			item, err = s.deps.Checkout.RejectCheckout(r.Context(), id, reason, actor)
		default:
			item, err = s.deps.Checkout.CompleteCheckout(r.Context(), id, body.Notes, actor)
		}
		if err != nil {
			writeServiceError(w, r, s.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}
