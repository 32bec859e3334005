package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dormdesk/internal/domain"
	"dormdesk/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSessionRepository writes to the primary store and falls back to
// the secondary while the primary is failing. It retries the primary once a
// minute.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSessionRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary session repository failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverSessionRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > time.Minute {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverSessionRepository) Save(ctx context.Context, session *models.Session, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.Save(ctx, session, ttl)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Save(ctx, session, ttl)
}

func (r *FailoverSessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	if r.usePrimary() {
		session, err := r.primary.Get(ctx, id)
		if err == nil {
			r.isDown.Store(false)
			if session != nil {
				return session, nil
			}
			// sessions saved during an outage only exist in the fallback
			return r.fallback.Get(ctx, id)
		}
		r.markDown(err)
	}

	return r.fallback.Get(ctx, id)
}

func (r *FailoverSessionRepository) Delete(ctx context.Context, id string) error {
	// Delete from both so a session created during an outage cannot outlive logout.
	_ = r.fallback.Delete(ctx, id)

	if r.usePrimary() {
		err := r.primary.Delete(ctx, id)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return nil
}
