package repository

import (
	"context"
	"sync"
	"time"

	"dormdesk/internal/models"
)

type sessionEntry struct {
	session   *models.Session
	expiresAt time.Time
}

type MemorySessionRepository struct {
	sessions sync.Map
	now      func() time.Time
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{now: time.Now}
}

func (r *MemorySessionRepository) Save(ctx context.Context, session *models.Session, ttl time.Duration) error {
	copied := *session
	r.sessions.Store(session.ID, sessionEntry{session: &copied, expiresAt: r.now().Add(ttl)})
	return nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	val, ok := r.sessions.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(sessionEntry)
	if r.now().After(entry.expiresAt) {
		r.sessions.Delete(id)
		return nil, nil
	}
	copied := *entry.session
	return &copied, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.sessions.Delete(id)
	return nil
}

// MemoryLocker is the single-process stand-in for RedisLocker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.locks[name]; ok && now.Before(until) {
		return false, nil
	}
	l.locks[name] = now.Add(ttl)
	return true, nil
}
