package auth

import (
	"testing"
	"time"

	"dormdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(now time.Time, ttl time.Duration) *models.Session {
	return &models.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Role:      models.RoleAdmin,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestTokenService(t *testing.T) {
	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	tokens := NewTokenService("0123456789abcdef", time.Hour)
	tokens.now = func() time.Time { return now }

	t.Run("IssueAndParse", func(t *testing.T) {
		token, err := tokens.Issue(testSession(now, time.Hour))
		require.NoError(t, err)

		claims, err := tokens.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", claims.SessionID)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, models.RoleAdmin, claims.Role)
	})

	t.Run("BearerPrefix", func(t *testing.T) {
		token, err := tokens.Issue(testSession(now, time.Hour))
		require.NoError(t, err)

		claims, err := tokens.Parse("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", claims.SessionID)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := tokens.Issue(testSession(now.Add(-2*time.Hour), time.Hour))
		require.NoError(t, err)

		claims, err := tokens.Parse(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
		require.NotNil(t, claims)
		assert.Equal(t, "sess-1", claims.SessionID)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenService("fedcba9876543210", time.Hour)
		token, err := other.Issue(testSession(now, time.Hour))
		require.NoError(t, err)

		claims, err := tokens.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tokens.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("DefaultTTL", func(t *testing.T) {
		assert.Equal(t, 12*time.Hour, NewTokenService("0123456789abcdef", 0).TTL())
	})
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "Valid", header: "Bearer abc", want: "abc"},
		{name: "LowerCase", header: "bearer abc", want: "abc"},
		{name: "Empty", header: "", wantErr: true},
		{name: "NoToken", header: "Bearer ", wantErr: true},
		{name: "WrongScheme", header: "Basic abc", wantErr: true},
		{name: "TooManyParts", header: "Bearer a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearer(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
