package service

import (
	"context"
	"fmt"
	"strings"

	"dormdesk/internal/config"
	"dormdesk/internal/domain"
	"dormdesk/internal/events"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

type ComplianceService struct {
	base
	files  store.Files
	bucket string
	policy *bluemonday.Policy
}

func NewComplianceService(docs store.Documents, files store.Files, cols config.CollectionsConfig, buckets config.BucketsConfig, publisher domain.EventPublisher, logger *zerolog.Logger) *ComplianceService {
	return &ComplianceService{
		base:   newBase(docs, cols, publisher, logger, "compliance"),
		files:  files,
		bucket: buckets.Compliance,
		policy: bluemonday.UGCPolicy(),
	}
}

func (s *ComplianceService) ListTickets(ctx context.Context, filter models.TicketFilter) ([]models.ComplianceTicket, int, error) {
	q := store.NewQuery().OrderDesc(store.FieldCreatedAt)
	if filter.Status != "" {
		q = q.Where(store.Equal("status", filter.Status))
	}
	if filter.Priority != "" {
		q = q.Where(store.Equal("priority", filter.Priority))
	}
	if filter.Category != "" {
		q = q.Where(store.Equal("category", filter.Category))
	}
	if filter.Building != "" {
		q = q.Where(store.Equal("building", filter.Building))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		q = q.Where(store.Search("title", term))
	}

	var (
		docs  []store.Document
		total int
	)
	if filter.Limit > 0 {
		list, err := s.docs.List(ctx, s.cols.ComplianceTickets, q.Page(filter.Limit, filter.Offset))
		if err != nil {
			s.logger.Error().Err(err).Str("collection", s.cols.ComplianceTickets).Msg("Failed to list tickets")
			return nil, 0, fmt.Errorf("list tickets: %w", err)
		}
		docs, total = list.Documents, list.Total
	} else {
		all, err := store.ListAll(ctx, s.docs, s.cols.ComplianceTickets, q)
		if err != nil {
			s.logger.Error().Err(err).Str("collection", s.cols.ComplianceTickets).Msg("Failed to list tickets")
			return nil, 0, fmt.Errorf("list tickets: %w", err)
		}
		docs, total = all, len(all)
	}

	tickets := make([]models.ComplianceTicket, 0, len(docs))
	for _, d := range docs {
		t, err := s.decodeTicket(d)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, total, nil
}

func (s *ComplianceService) GetTicket(ctx context.Context, id string) (*models.ComplianceTicket, error) {
	doc, err := s.docs.Get(ctx, s.cols.ComplianceTickets, id)
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return s.decodeTicket(doc)
}

// CreateTicket uploads any new images first and then writes the ticket. A
// failed write leaves the uploads in place; their IDs are logged.
func (s *ComplianceService) CreateTicket(ctx context.Context, in models.TicketInput, uploads []models.Upload, actor models.Actor) (*models.ComplianceTicket, error) {
	in = s.normalizeTicketInput(in)
	if in.Status == "" {
		in.Status = models.TicketOpen
	}
	if err := validateTicket(in); err != nil {
		return nil, err
	}

	images := normalizeImages(in.Images, s.preview)
	uploaded, err := s.upload(ctx, uploads)
	if err != nil {
		return nil, err
	}
	images = append(images, uploaded...)

	ticket := models.ComplianceTicket{CreatedBy: actor.ID}
	applyTicketInput(&ticket, in, images)
	ticket.UpdatedBy = actor.ID

	saved, err := s.write(ctx, "", ticket, uploaded)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventTicketCreated, saved.ID, saved.Title, string(saved.Status), "", actor)
	return saved, nil
}

// UpdateTicket overwrites the ticket. When in.Images is nil the stored images
// are kept; new uploads are appended either way.
func (s *ComplianceService) UpdateTicket(ctx context.Context, id string, in models.TicketInput, uploads []models.Upload, actor models.Actor) (*models.ComplianceTicket, error) {
	existing, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	in = s.normalizeTicketInput(in)
	if in.Status == "" {
		in.Status = existing.Status
	}
	if err := validateTicket(in); err != nil {
		return nil, err
	}

	images := existing.Images
	if in.Images != nil {
		images = normalizeImages(in.Images, s.preview)
	}
	uploaded, err := s.upload(ctx, uploads)
	if err != nil {
		return nil, err
	}
	images = append(images, uploaded...)

	ticket := *existing
	if in.Status != existing.Status {
		ticket.StatusChangedBy = actor.ID
		ticket.StatusChangedAt = models.TimePtr(s.now().UTC())
	}
	applyTicketInput(&ticket, in, images)
	ticket.UpdatedBy = actor.ID

	saved, err := s.write(ctx, id, ticket, uploaded)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventTicketUpdated, id, saved.Title, string(saved.Status), "", actor)
	return saved, nil
}

func (s *ComplianceService) ChangeTicketStatus(ctx context.Context, id string, status models.TicketStatus, notes string, actor models.Actor) (*models.ComplianceTicket, error) {
	if !status.Valid() {
		v := newValidation()
		v.add("status", "status must be open, in_progress, resolved or closed")
		return nil, v
	}
	if _, err := s.GetTicket(ctx, id); err != nil {
		return nil, err
	}

	notes = s.sanitize(notes)
	patch := store.Document{
		"status":          string(status),
		"statusChangedBy": actor.ID,
		"statusChangedAt": s.stamp(),
		"statusNotes":     notes,
		"updatedBy":       actor.ID,
	}
	doc, err := s.docs.Update(ctx, s.cols.ComplianceTickets, id, patch)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.ComplianceTickets).Str("id", id).Msg("Failed to change ticket status")
		return nil, fmt.Errorf("change ticket %s status: %w", id, err)
	}

	saved, err := s.decodeTicket(doc)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventTicketStatusChanged, id, saved.Title, string(status), notes, actor)
	return saved, nil
}

func (s *ComplianceService) write(ctx context.Context, id string, ticket models.ComplianceTicket, uploaded []models.ImageRef) (*models.ComplianceTicket, error) {
	doc, err := store.Encode(ticket)
	if err != nil {
		return nil, err
	}
	doc = store.Payload(doc)

	var saved store.Document
	if id == "" {
		saved, err = s.docs.Create(ctx, s.cols.ComplianceTickets, store.UniqueID(), doc)
	} else {
		saved, err = s.docs.Update(ctx, s.cols.ComplianceTickets, id, doc)
	}
	if err != nil {
		event := s.logger.Error().Err(err).Str("collection", s.cols.ComplianceTickets).Str("id", id)
		if len(uploaded) > 0 {
			ids := make([]string, 0, len(uploaded))
			for _, ref := range uploaded {
				ids = append(ids, ref.ID)
			}
			event = event.Strs("orphaned_files", ids)
		}
		event.Msg("Failed to save ticket")
		return nil, fmt.Errorf("save ticket: %w", err)
	}
	return s.decodeTicket(saved)
}

func (s *ComplianceService) upload(ctx context.Context, uploads []models.Upload) ([]models.ImageRef, error) {
	refs := make([]models.ImageRef, 0, len(uploads))
	for _, u := range uploads {
		f, err := s.files.CreateFile(ctx, s.bucket, u.Name, u.ContentType, u.Body)
		if err != nil {
			s.logger.Error().Err(err).Str("bucket", s.bucket).Str("name", u.Name).Msg("Failed to upload image")
			return nil, fmt.Errorf("upload %s: %w", u.Name, err)
		}
		refs = append(refs, models.ImageRef{ID: f.ID, URL: s.files.PreviewURL(s.bucket, f.ID)})
	}
	return refs, nil
}

func (s *ComplianceService) preview(fileID string) string {
	if s.files == nil {
		return ""
	}
	return s.files.PreviewURL(s.bucket, fileID)
}

// decodeTicket normalizes legacy image shapes before decoding.
func (s *ComplianceService) decodeTicket(doc store.Document) (*models.ComplianceTicket, error) {
	doc = store.Clone(doc)
	doc["images"] = normalizeImages(doc["images"], s.preview)

	var t models.ComplianceTicket
	if err := store.Decode(doc, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *ComplianceService) sanitize(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(text))
}

func (s *ComplianceService) normalizeTicketInput(in models.TicketInput) models.TicketInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Building = strings.TrimSpace(in.Building)
	in.Floor = strings.TrimSpace(in.Floor)
	in.RoomNumber = strings.TrimSpace(in.RoomNumber)
	in.PayerStudentID = strings.TrimSpace(in.PayerStudentID)
	in.AssignedTo = strings.TrimSpace(in.AssignedTo)
	in.Description = s.sanitize(in.Description)
	in.Notes = s.sanitize(in.Notes)
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if in.PayerType == "" {
		in.PayerType = models.PayerManagement
	}
	if in.PayerType != models.PayerStudent {
		in.PayerStudentID = ""
	}
	return in
}

func validateTicket(in models.TicketInput) error {
	v := newValidation()
	if in.Title == "" {
		v.add("title", "title is required")
	}
	if !oneOf(in.Category, models.TicketCategories) {
		v.add("category", "category must be one of "+strings.Join(models.TicketCategories, ", "))
	}
	if !in.Priority.Valid() {
		v.add("priority", "priority must be low, medium, high or urgent")
	}
	if !in.Status.Valid() {
		v.add("status", "status must be open, in_progress, resolved or closed")
	}
	switch in.PayerType {
	case models.PayerManagement:
	case models.PayerStudent:
		if in.PayerStudentID == "" {
			v.add("payerStudentId", "a student must be selected when the student pays")
		}
	default:
		v.add("payerType", "payer must be management or student")
	}
	if in.WorkCost < 0 {
		v.add("workCost", "work cost cannot be negative")
	}
	if in.ToolsCost < 0 {
		v.add("toolsCost", "tools cost cannot be negative")
	}
	return v.orNil()
}

// TotalCost is the ticket's total: work plus tools.
func TotalCost(work, tools models.Amount) models.Amount {
	return work + tools
}

func applyTicketInput(t *models.ComplianceTicket, in models.TicketInput, images []models.ImageRef) {
	t.Title = in.Title
	t.Description = in.Description
	t.Category = in.Category
	t.Priority = in.Priority
	t.Status = in.Status
	t.Building = in.Building
	t.Floor = in.Floor
	t.RoomNumber = in.RoomNumber
	t.PayerType = in.PayerType
	t.PayerStudentID = in.PayerStudentID
	t.AssignedTo = in.AssignedTo
	t.WorkCost = in.WorkCost
	t.ToolsCost = in.ToolsCost
	t.TotalCost = TotalCost(in.WorkCost, in.ToolsCost)
	t.Notes = in.Notes
	t.Images = images
}
