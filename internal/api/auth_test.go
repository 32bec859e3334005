package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dormdesk/internal/config"
	"dormdesk/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalCan(t *testing.T) {
	t.Run("SessionFollowsRole", func(t *testing.T) {
		p := &Principal{Session: &models.Session{Role: models.RoleService}}
		assert.True(t, p.Can(models.PermManageCompliance))
		assert.False(t, p.Can(models.PermManageUsers))
	})

	t.Run("ClientPermissionList", func(t *testing.T) {
		p := &Principal{ClientName: "kiosk", Permissions: []string{" view:rooms "}}
		assert.True(t, p.Can(models.PermViewRooms))
		assert.False(t, p.Can(models.PermManageRooms))
	})

	t.Run("ClientWithoutListAllowsAll", func(t *testing.T) {
		p := &Principal{ClientName: "ops"}
		assert.True(t, p.Can(models.PermManageUsers))
	})

	t.Run("Actor", func(t *testing.T) {
		assert.Equal(t, models.Actor{ID: "api:ops", Name: "ops"}, (&Principal{ClientName: "ops"}).Actor())
		s := &models.Session{UserID: "u1", Name: "Dana"}
		assert.Equal(t, models.Actor{ID: "u1", Name: "Dana"}, (&Principal{Session: s}).Actor())
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		l := newRateLimiter(config.APIRateLimitConfig{})
		for i := 0; i < 10; i++ {
			assert.True(t, l.allow("k"))
		}
	})

	t.Run("PerKeyBuckets", func(t *testing.T) {
		l := newRateLimiter(config.APIRateLimitConfig{RPS: 0.001, Burst: 2})
		assert.True(t, l.allow("a"))
		assert.True(t, l.allow("a"))
		assert.False(t, l.allow("a"))
		assert.True(t, l.allow("b"))
		assert.Same(t, l.getLimiter("a"), l.getLimiter("a"))
	})
}

func TestRequirePermissionWithoutPrincipal(t *testing.T) {
	h := RequirePermission(models.PermViewRooms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecoverer(t *testing.T) {
	h := recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
