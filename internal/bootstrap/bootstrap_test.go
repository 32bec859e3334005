package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dormdesk/internal/config"
	"dormdesk/internal/models"
	"dormdesk/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	body := `
store:
  driver: memory
  public_url: http://files.test/
api:
  auth:
    jwt_secret: bootstrap-test-secret-value
` + extra
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func seedAdmin(t *testing.T, app *App) {
	t.Helper()
	_, err := app.Users.CreateUser(context.Background(), models.UserInput{
		Name:            "Admin",
		Email:           "admin@dorm.test",
		Role:            models.RoleAdmin,
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
	}, models.SystemActor)
	require.NoError(t, err)
}

func TestBuildMemory(t *testing.T) {
	cfg := loadConfig(t, "")
	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, app.Close()) }()

	assert.IsType(t, &repository.MemorySessionRepository{}, app.Sessions)
	assert.IsType(t, &repository.MemoryLocker{}, app.Locker)
	assert.NotNil(t, app.FileReader)
	assert.NoError(t, app.Ready(context.Background()))

	deps := app.APIDeps()
	assert.NotNil(t, deps.Auth)
	assert.NotNil(t, deps.Files)
	assert.NotNil(t, deps.Ready)

	seedAdmin(t, app)
	session, token, err := app.Auth.Login(context.Background(), "Admin@dorm.test", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := app.Auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	n, err := app.Checkout.CompleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBuildWithRedis(t *testing.T) {
	t.Run("Reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := loadConfig(t, "redis:\n  address: "+mr.Addr()+"\n")

		app, err := Build(context.Background(), cfg, nil)
		require.NoError(t, err)
		defer func() { assert.NoError(t, app.Close()) }()

		assert.IsType(t, &repository.FailoverSessionRepository{}, app.Sessions)
		assert.IsType(t, &repository.RedisLocker{}, app.Locker)

		seedAdmin(t, app)
		_, _, err = app.Auth.Login(context.Background(), "admin@dorm.test", "correct-horse")
		require.NoError(t, err)

		var stored int
		for _, key := range mr.Keys() {
			if strings.HasPrefix(key, "dormdesk:session:") {
				stored++
			}
		}
		assert.Equal(t, 1, stored)
	})

	t.Run("UnreachableFallsBack", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		cfg := loadConfig(t, "redis:\n  address: "+addr+"\n")

		app, err := Build(context.Background(), cfg, nil)
		require.NoError(t, err)
		defer func() { assert.NoError(t, app.Close()) }()

		assert.IsType(t, &repository.MemorySessionRepository{}, app.Sessions)
		assert.IsType(t, &repository.MemoryLocker{}, app.Locker)
	})
}

func TestBuildUnknownDriver(t *testing.T) {
	cfg := loadConfig(t, "")
	cfg.Store.Driver = "cassandra"

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestBuildSQLite(t *testing.T) {
	cfg := loadConfig(t, "")
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "data", "dormdesk.db")

	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.NoError(t, app.Ready(context.Background()))
	seedAdmin(t, app)

	users, total, err := app.Users.ListUsers(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@dorm.test", users[0].Email)

	assert.NoError(t, app.Close())
}
