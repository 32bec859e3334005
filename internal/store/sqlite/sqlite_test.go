package sqlite

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dormdesk/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "dormdesk.db"), "http://localhost:8080", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "a", "b", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, "", &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	t.Run("CreateGetUpdate", func(t *testing.T) {
		created, err := db.Create(ctx, "rooms", "r1", store.Document{"roomNumber": "101", "capacity": 2})
		require.NoError(t, err)
		assert.Equal(t, "r1", created.ID())
		assert.False(t, created.CreatedAt().IsZero())

		updated, err := db.Update(ctx, "rooms", "r1", store.Document{"capacity": 3})
		require.NoError(t, err)
		assert.Equal(t, 3.0, updated["capacity"])
		assert.Equal(t, "101", updated["roomNumber"])
	})

	t.Run("Conflict", func(t *testing.T) {
		_, err := db.Create(ctx, "rooms", "r1", store.Document{})
		assert.True(t, errors.Is(err, store.ErrConflict))
	})

	t.Run("ListAppliesQueryInInsertionOrder", func(t *testing.T) {
		_, err := db.Create(ctx, "rooms", "r2", store.Document{"roomNumber": "102", "capacity": 1})
		require.NoError(t, err)
		_, err = db.Create(ctx, "rooms", "r3", store.Document{"roomNumber": "201", "capacity": 4})
		require.NoError(t, err)

		list, err := db.List(ctx, "rooms", store.NewQuery(store.GreaterThan("capacity", 1)))
		require.NoError(t, err)
		require.Equal(t, 2, list.Total)
		assert.Equal(t, "r1", list.Documents[0].ID())
		assert.Equal(t, "r3", list.Documents[1].ID())

		other, err := db.List(ctx, "contracts", store.NewQuery())
		require.NoError(t, err)
		assert.Equal(t, 0, other.Total)
	})

	t.Run("DeleteAndMissing", func(t *testing.T) {
		require.NoError(t, db.Delete(ctx, "rooms", "r2"))
		_, err := db.Get(ctx, "rooms", "r2")
		assert.True(t, errors.Is(err, store.ErrNotFound))
		assert.True(t, errors.Is(db.Delete(ctx, "rooms", "r2"), store.ErrNotFound))
		_, err = db.Update(ctx, "rooms", "r2", store.Document{})
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})
}

func TestConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.Create(ctx, "payments", "", store.Document{"status": "paid", "amount": 10})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := store.ListAll(ctx, db, "payments", store.NewQuery(store.Equal("status", "paid")))
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestFiles(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	db.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	f, err := db.CreateFile(ctx, "services", "laundry.png", "", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", f.MimeType)
	assert.Equal(t, "http://localhost:8080/api/v1/files/services/"+f.ID, db.PreviewURL("services", f.ID))

	meta, rc, err := db.OpenFile(ctx, "services", f.ID)
	require.NoError(t, err)
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	assert.Equal(t, "png", string(content))
	assert.Equal(t, "laundry.png", meta.Name)

	_, _, err = db.OpenFile(ctx, "services", "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
