package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dormdesk/internal/config"
	"dormdesk/internal/domain"
	"dormdesk/internal/events"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/rs/zerolog"
)

// CheckoutService handles student checkout requests and their approval flow.
type CheckoutService struct {
	base
}

func NewCheckoutService(docs store.Documents, cols config.CollectionsConfig, publisher domain.EventPublisher, logger *zerolog.Logger) *CheckoutService {
	return &CheckoutService{base: newBase(docs, cols, publisher, logger, "checkout")}
}

// ListCheckouts returns requests newest first. From/To select requests whose
// period overlaps the range.
func (s *CheckoutService) ListCheckouts(ctx context.Context, filter models.CheckoutFilter) ([]models.CheckoutView, int, error) {
	q := store.NewQuery().OrderDesc(store.FieldCreatedAt)
	if filter.Status != "" {
		q = q.Where(store.Equal("status", filter.Status))
	}
	if filter.UserID != "" {
		q = q.Where(store.Equal("userId", filter.UserID))
	}
	if !filter.From.IsZero() {
		q = q.Where(store.GreaterThanEqual("endDate", filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		q = q.Where(store.LessThanEqual("startDate", filter.To.UTC()))
	}

	var (
		docs  []store.Document
		total int
	)
	if filter.Limit > 0 {
		list, err := s.docs.List(ctx, s.cols.CheckoutRequests, q.Page(filter.Limit, filter.Offset))
		if err != nil {
			s.logger.Error().Err(err).Str("collection", s.cols.CheckoutRequests).Msg("Failed to list checkout requests")
			return nil, 0, fmt.Errorf("list checkout requests: %w", err)
		}
		docs, total = list.Documents, list.Total
	} else {
		all, err := store.ListAll(ctx, s.docs, s.cols.CheckoutRequests, q)
		if err != nil {
			s.logger.Error().Err(err).Str("collection", s.cols.CheckoutRequests).Msg("Failed to list checkout requests")
			return nil, 0, fmt.Errorf("list checkout requests: %w", err)
		}
		docs, total = all, len(all)
	}

	reqs, err := store.DecodeAll[models.CheckoutRequest](docs)
	if err != nil {
		return nil, 0, err
	}
	views := make([]models.CheckoutView, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, checkoutView(r))
	}
	return views, total, nil
}

func (s *CheckoutService) GetCheckout(ctx context.Context, id string) (*models.CheckoutView, error) {
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := checkoutView(*req)
	return &v, nil
}

// CreateCheckout validates the request and stores it as pending. Every
// failing field is reported and nothing is written.
func (s *CheckoutService) CreateCheckout(ctx context.Context, in models.CheckoutInput, actor models.Actor) (*models.CheckoutView, error) {
	if err := ValidateCheckout(in); err != nil {
		return nil, err
	}

	req := models.CheckoutRequest{
		UserID:     strings.TrimSpace(in.UserID),
		UserName:   strings.TrimSpace(in.UserName),
		StartDate:  in.StartDate.UTC(),
		EndDate:    in.EndDate.UTC(),
		Reason:     strings.TrimSpace(in.Reason),
		EscortName: strings.TrimSpace(in.EscortName),
		Status:     models.CheckoutPending,
		CreatedBy:  actor.ID,
	}
	if req.UserName == "" {
		req.UserName = s.lookupUserName(ctx, req.UserID)
	}

	doc, err := store.Encode(req)
	if err != nil {
		return nil, err
	}
	saved, err := s.docs.Create(ctx, s.cols.CheckoutRequests, store.UniqueID(), store.Payload(doc))
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.CheckoutRequests).Msg("Failed to create checkout request")
		return nil, fmt.Errorf("create checkout request: %w", err)
	}

	var out models.CheckoutRequest
	if err := store.Decode(saved, &out); err != nil {
		return nil, err
	}
	s.publishEvent(events.EventCheckoutCreated, out.ID, out.UserName, string(out.Status), out.Reason, actor)
	v := checkoutView(out)
	return &v, nil
}

// ValidateCheckout reports every missing or inconsistent field of a new request.
func ValidateCheckout(in models.CheckoutInput) error {
	v := newValidation()
	if strings.TrimSpace(in.UserID) == "" {
		v.add("userId", "a student must be selected")
	}
	start := in.StartDate.Ptr()
	end := in.EndDate.Ptr()
	if start == nil {
		v.add("startDate", "start date is required")
	}
	if end == nil {
		v.add("endDate", "end date is required")
	} else if start != nil && !end.After(*start) {
		v.add("endDate", "end date must be after the start date")
	}
	if strings.TrimSpace(in.Reason) == "" {
		v.add("reason", "reason is required")
	}
	return v.orNil()
}

func (s *CheckoutService) ApproveCheckout(ctx context.Context, id, notes string, actor models.Actor) (*models.CheckoutView, error) {
	return s.transition(ctx, id, models.CheckoutPending, models.CheckoutApproved, actor, store.Document{
		"actionNotes": strings.TrimSpace(notes),
	}, events.EventCheckoutApproved)
}

// RejectCheckout requires a non-blank reason; without one no store call is made.
func (s *CheckoutService) RejectCheckout(ctx context.Context, id, reason string, actor models.Actor) (*models.CheckoutView, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrRejectionReasonRequired
	}
	return s.transition(ctx, id, models.CheckoutPending, models.CheckoutRejected, actor, store.Document{
		"rejectionReason": reason,
		"actionNotes":     reason,
	}, events.EventCheckoutRejected)
}

func (s *CheckoutService) CompleteCheckout(ctx context.Context, id, notes string, actor models.Actor) (*models.CheckoutView, error) {
	return s.transition(ctx, id, models.CheckoutApproved, models.CheckoutCompleted, actor, store.Document{
		"actionNotes": strings.TrimSpace(notes),
		"completedAt": s.stamp(),
	}, events.EventCheckoutCompleted)
}

// CompleteExpired marks approved requests whose end date has passed as
// completed by the system. It keeps going past individual failures.
func (s *CheckoutService) CompleteExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	q := store.NewQuery(
		store.Equal("status", models.CheckoutApproved),
		store.LessThan("endDate", now),
	)
	docs, err := store.ListAll(ctx, s.docs, s.cols.CheckoutRequests, q)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.CheckoutRequests).Msg("Failed to list expired checkout requests")
		return 0, fmt.Errorf("list expired checkout requests: %w", err)
	}

	var (
		completed int
		errs      []error
	)
	for _, d := range docs {
		patch := store.Document{
			"status":      string(models.CheckoutCompleted),
			"actionBy":    models.SystemActor.ID,
			"actionAt":    store.FormatTime(now),
			"actionNotes": "Automatically completed after the end date passed",
			"completedAt": store.FormatTime(now),
		}
		if _, err := s.docs.Update(ctx, s.cols.CheckoutRequests, d.ID(), patch); err != nil {
			s.logger.Error().Err(err).Str("id", d.ID()).Msg("Failed to auto-complete checkout request")
			errs = append(errs, fmt.Errorf("complete %s: %w", d.ID(), err))
			continue
		}
		completed++
		s.publishEvent(events.EventCheckoutAutoComplete, d.ID(), "", string(models.CheckoutCompleted), "", models.SystemActor)
	}
	return completed, errors.Join(errs...)
}

func (s *CheckoutService) transition(ctx context.Context, id string, from, to models.CheckoutStatus, actor models.Actor, fields store.Document, eventType string) (*models.CheckoutView, error) {
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != from {
		return nil, fmt.Errorf("%w: request %s is %s, cannot become %s", ErrInvalidTransition, id, req.Status, to)
	}

	patch := store.Document{
		"status":   string(to),
		"actionBy": actor.ID,
		"actionAt": s.stamp(),
	}
	for k, v := range fields {
		patch[k] = v
	}

	doc, err := s.docs.Update(ctx, s.cols.CheckoutRequests, id, patch)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.CheckoutRequests).Str("id", id).Str("status", string(to)).Msg("Failed to update checkout request")
		return nil, fmt.Errorf("update checkout request %s: %w", id, err)
	}

	var out models.CheckoutRequest
	if err := store.Decode(doc, &out); err != nil {
		return nil, err
	}
	s.publishEvent(eventType, id, out.UserName, string(to), out.ActionNotes, actor)
	v := checkoutView(out)
	return &v, nil
}

func (s *CheckoutService) get(ctx context.Context, id string) (*models.CheckoutRequest, error) {
	doc, err := s.docs.Get(ctx, s.cols.CheckoutRequests, id)
	if err != nil {
		return nil, fmt.Errorf("get checkout request %s: %w", id, err)
	}
	var req models.CheckoutRequest
	if err := store.Decode(doc, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *CheckoutService) lookupUserName(ctx context.Context, userID string) string {
	doc, err := s.docs.Get(ctx, s.cols.Users, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Could not resolve student name")
		return ""
	}
	name, _ := doc["name"].(string)
	return name
}

func checkoutView(r models.CheckoutRequest) models.CheckoutView {
	return models.CheckoutView{CheckoutRequest: r, DurationDays: models.DurationDays(r.StartDate, r.EndDate)}
}
