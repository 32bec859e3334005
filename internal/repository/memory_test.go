package repository

import (
	"context"
	"testing"
	"time"

	"dormdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	t.Run("SaveAndGet", func(t *testing.T) {
		session := &models.Session{ID: "s1", UserID: "u1"}
		require.NoError(t, repo.Save(ctx, session, time.Hour))

		got, err := repo.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, session, got)

		// stored value is a copy
		got.UserID = "changed"
		again, _ := repo.Get(ctx, "s1")
		assert.Equal(t, "u1", again.UserID)
	})

	t.Run("Expired", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		got, err := repo.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &models.Session{ID: "s2"}, time.Hour))
		require.NoError(t, repo.Delete(ctx, "s2"))
		got, _ := repo.Get(ctx, "s2")
		assert.Nil(t, got)
	})
}

func TestMemoryLocker(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := locker.TryLock(ctx, "sweep", time.Minute)
	assert.True(t, ok)
	ok, _ = locker.TryLock(ctx, "sweep", time.Minute)
	assert.False(t, ok)
	ok, _ = locker.TryLock(ctx, "other", time.Minute)
	assert.True(t, ok)

	now = now.Add(time.Minute + time.Second)
	ok, _ = locker.TryLock(ctx, "sweep", time.Minute)
	assert.True(t, ok)
}
