package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"dormdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Save(ctx context.Context, session *models.Session, ttl time.Duration) error {
	args := m.Called(ctx, session, ttl)
	return args.Error(0)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestFailoverSessionRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		session := &models.Session{ID: "s1"}
		primary.On("Get", ctx, "s1").Return(session, nil).Once()

		got, err := repo.Get(ctx, "s1")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryMissFallsThrough", func(t *testing.T) {
		session := &models.Session{ID: "s0"}
		primary.On("Get", ctx, "s0").Return(nil, nil).Once()
		fallback.On("Get", ctx, "s0").Return(session, nil).Once()

		got, err := repo.Get(ctx, "s0")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		assert.False(t, repo.isDown.Load())
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		session := &models.Session{ID: "s2"}
		primary.On("Save", ctx, session, time.Hour).Return(errors.New("fail")).Once()
		fallback.On("Save", ctx, session, time.Hour).Return(nil).Once()

		require.NoError(t, repo.Save(ctx, session, time.Hour))
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		session := &models.Session{ID: "s2"}
		fallback.On("Get", ctx, "s2").Return(session, nil).Once()

		got, err := repo.Get(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, session, got)
		primary.AssertNotCalled(t, "Get", ctx, "s2")
	})

	t.Run("RecoversAfterInterval", func(t *testing.T) {
		repo.mu.Lock()
		repo.lastCheck = time.Now().Add(-2 * time.Minute)
		repo.mu.Unlock()

		session := &models.Session{ID: "s3"}
		primary.On("Get", ctx, "s3").Return(session, nil).Once()

		got, err := repo.Get(ctx, "s3")
		require.NoError(t, err)
		assert.Equal(t, session, got)
		assert.False(t, repo.isDown.Load())
	})

	t.Run("DeleteHitsBoth", func(t *testing.T) {
		fallback.On("Delete", ctx, "s4").Return(nil).Once()
		primary.On("Delete", ctx, "s4").Return(nil).Once()

		require.NoError(t, repo.Delete(ctx, "s4"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
