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

	"github.com/rs/zerolog"
)

// CatalogService manages the bookable services offered to residents.
type CatalogService struct {
	base
	files  store.Files
	bucket string
}

func NewCatalogService(docs store.Documents, files store.Files, cols config.CollectionsConfig, buckets config.BucketsConfig, publisher domain.EventPublisher, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		base:   newBase(docs, cols, publisher, logger, "catalog"),
		files:  files,
		bucket: buckets.Services,
	}
}

func (s *CatalogService) ListServices(ctx context.Context, filter models.CatalogFilter) ([]models.CatalogItem, int, error) {
	q := store.NewQuery().OrderAsc("nameEn")
	if filter.Type != "" {
		q = q.Where(store.Equal("type", filter.Type))
	}
	if filter.Available != nil {
		q = q.Where(store.Equal("isAvailable", *filter.Available))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		q = q.Where(store.Search("nameEn", term))
	}

	if filter.Limit > 0 {
		list, err := s.docs.List(ctx, s.cols.Services, q.Page(filter.Limit, filter.Offset))
		if err != nil {
			s.logger.Error().Err(err).Str("collection", s.cols.Services).Msg("Failed to list services")
			return nil, 0, fmt.Errorf("list services: %w", err)
		}
		items, err := store.DecodeAll[models.CatalogItem](list.Documents)
		return items, list.Total, err
	}

	all, err := store.ListAll(ctx, s.docs, s.cols.Services, q)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Services).Msg("Failed to list services")
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	items, err := store.DecodeAll[models.CatalogItem](all)
	return items, len(all), err
}

func (s *CatalogService) GetService(ctx context.Context, id string) (*models.CatalogItem, error) {
	doc, err := s.docs.Get(ctx, s.cols.Services, id)
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	var item models.CatalogItem
	if err := store.Decode(doc, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *CatalogService) CreateService(ctx context.Context, in models.CatalogInput, image *models.Upload, actor models.Actor) (*models.CatalogItem, error) {
	in = normalizeCatalogInput(in)
	if err := validateCatalog(in); err != nil {
		return nil, err
	}

	item := models.CatalogItem{IsAvailable: true, CreatedBy: actor.ID}
	applyCatalogInput(&item, in)
	item.UpdatedBy = actor.ID

	if err := s.attachImage(ctx, &item, image); err != nil {
		return nil, err
	}

	saved, err := s.write(ctx, "", item)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventServiceCreated, saved.ID, saved.NameEn, "", "", actor)
	return saved, nil
}

// UpdateService overwrites the service. A new image replaces the old reference.
func (s *CatalogService) UpdateService(ctx context.Context, id string, in models.CatalogInput, image *models.Upload, actor models.Actor) (*models.CatalogItem, error) {
	existing, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	in = normalizeCatalogInput(in)
	if err := validateCatalog(in); err != nil {
		return nil, err
	}

	item := *existing
	applyCatalogInput(&item, in)
	item.UpdatedBy = actor.ID

	if err := s.attachImage(ctx, &item, image); err != nil {
		return nil, err
	}

	saved, err := s.write(ctx, id, item)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventServiceUpdated, id, saved.NameEn, "", "", actor)
	return saved, nil
}

func (s *CatalogService) SetServiceAvailability(ctx context.Context, id string, available bool, actor models.Actor) (*models.CatalogItem, error) {
	doc, err := s.docs.Update(ctx, s.cols.Services, id, store.Document{"isAvailable": available, "updatedBy": actor.ID})
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Services).Str("id", id).Msg("Failed to toggle availability")
		return nil, fmt.Errorf("set service %s availability: %w", id, err)
	}
	var item models.CatalogItem
	if err := store.Decode(doc, &item); err != nil {
		return nil, err
	}
	s.publishEvent(events.EventServiceUpdated, id, item.NameEn, fmt.Sprintf("available=%t", available), "", actor)
	return &item, nil
}

// DeleteService removes the service document permanently.
func (s *CatalogService) DeleteService(ctx context.Context, id string, actor models.Actor) error {
	existing, err := s.GetService(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, s.cols.Services, id); err != nil {
		s.logger.Error().Err(err).Str("collection", s.cols.Services).Str("id", id).Msg("Failed to delete service")
		return fmt.Errorf("delete service %s: %w", id, err)
	}
	s.publishEvent(events.EventServiceDeleted, id, existing.NameEn, "", "", actor)
	return nil
}

func (s *CatalogService) attachImage(ctx context.Context, item *models.CatalogItem, image *models.Upload) error {
	if image == nil {
		return nil
	}
	f, err := s.files.CreateFile(ctx, s.bucket, image.Name, image.ContentType, image.Body)
	if err != nil {
		s.logger.Error().Err(err).Str("bucket", s.bucket).Msg("Failed to upload service image")
		return fmt.Errorf("upload service image: %w", err)
	}
	item.ImageID = f.ID
	item.ImageURL = s.files.PreviewURL(s.bucket, f.ID)
	return nil
}

func (s *CatalogService) write(ctx context.Context, id string, item models.CatalogItem) (*models.CatalogItem, error) {
	doc, err := store.Encode(item)
	if err != nil {
		return nil, err
	}
	doc = store.Payload(doc)

	var saved store.Document
	if id == "" {
		saved, err = s.docs.Create(ctx, s.cols.Services, store.UniqueID(), doc)
	} else {
		saved, err = s.docs.Update(ctx, s.cols.Services, id, doc)
	}
	if err != nil {
		event := s.logger.Error().Err(err).Str("collection", s.cols.Services).Str("id", id)
		if item.ImageID != "" {
			event = event.Str("image_id", item.ImageID)
		}
		event.Msg("Failed to save service")
		return nil, fmt.Errorf("save service: %w", err)
	}

	var out models.CatalogItem
	if err := store.Decode(saved, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func normalizeCatalogInput(in models.CatalogInput) models.CatalogInput {
	in.NameEn = strings.TrimSpace(in.NameEn)
	in.NameAr = strings.TrimSpace(in.NameAr)
	in.DescriptionEn = strings.TrimSpace(in.DescriptionEn)
	in.DescriptionAr = strings.TrimSpace(in.DescriptionAr)
	in.Type = strings.TrimSpace(in.Type)
	in.ProviderName = strings.TrimSpace(in.ProviderName)
	in.ProviderPhone = strings.TrimSpace(in.ProviderPhone)
	in.ProviderEmail = strings.TrimSpace(in.ProviderEmail)
	return in
}

func validateCatalog(in models.CatalogInput) error {
	v := newValidation()
	if in.NameEn == "" {
		v.add("nameEn", "English name is required")
	}
	if in.NameAr == "" {
		v.add("nameAr", "Arabic name is required")
	}
	if !oneOf(in.Type, models.ServiceTypes) {
		v.add("type", "type must be one of "+strings.Join(models.ServiceTypes, ", "))
	}
	if in.Price < 0 {
		v.add("price", "price cannot be negative")
	}
	if in.Duration < 0 {
		v.add("duration", "duration cannot be negative")
	}
	if in.ProviderEmail != "" && !validEmail(in.ProviderEmail) {
		v.add("providerEmail", "provider email is not valid")
	}
	return v.orNil()
}

func applyCatalogInput(item *models.CatalogItem, in models.CatalogInput) {
	item.NameEn = in.NameEn
	item.NameAr = in.NameAr
	item.DescriptionEn = in.DescriptionEn
	item.DescriptionAr = in.DescriptionAr
	item.Type = in.Type
	item.Price = in.Price
	item.Duration = in.Duration
	if in.IsAvailable != nil {
		item.IsAvailable = *in.IsAvailable
	}
	item.ProviderName = in.ProviderName
	item.ProviderPhone = in.ProviderPhone
	item.ProviderEmail = in.ProviderEmail
}
