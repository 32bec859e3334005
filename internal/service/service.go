// Package service holds the per-entity controllers of the console.
package service

import (
	"time"

	"dormdesk/internal/config"
	"dormdesk/internal/domain"
	"dormdesk/internal/events"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/rs/zerolog"
)

// base is the dependency set every controller shares.
type base struct {
	docs      store.Documents
	cols      config.CollectionsConfig
	publisher domain.EventPublisher
	logger    *zerolog.Logger
	now       func() time.Time
}

func newBase(docs store.Documents, cols config.CollectionsConfig, publisher domain.EventPublisher, logger *zerolog.Logger, component string) base {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", component).Logger()
	return base{
		docs:      docs,
		cols:      cols,
		publisher: publisher,
		logger:    &l,
		now:       time.Now,
	}
}

func (b *base) publishEvent(eventType, id, label, status, notes string, actor models.Actor) {
	if b.publisher == nil {
		return
	}
	payload := events.EntityPayload{
		ID:        id,
		Label:     label,
		Status:    status,
		Notes:     notes,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		At:        b.now().UTC(),
	}
	if err := b.publisher.PublishJSON(eventType, payload); err != nil {
		b.logger.Error().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func (b *base) stamp() string {
	return store.FormatTime(b.now())
}

// page slices an already filtered list.
func page[T any](items []T, limit, offset int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
