package mongodb

import (
	"testing"
	"time"

	"dormdesk/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildFilter(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, bson.M{}, buildFilter(nil))
	})

	t.Run("SingleEqual", func(t *testing.T) {
		got := buildFilter([]store.Filter{store.Equal("status", "active")})
		assert.Equal(t, bson.M{"status": bson.M{"$eq": "active"}}, got)
	})

	t.Run("MetadataFieldsAreRenamed", func(t *testing.T) {
		since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		got := buildFilter([]store.Filter{
			store.Equal(store.FieldID, "a", "b"),
			store.GreaterThanEqual(store.FieldCreatedAt, since),
		})

		and, ok := got["$and"].(bson.A)
		require.True(t, ok)
		require.Len(t, and, 2)
		assert.Equal(t, bson.M{"_id": bson.M{"$in": bson.A{"a", "b"}}}, and[0])
		assert.Equal(t, bson.M{"_createdAt": bson.M{"$gte": primitive.NewDateTimeFromTime(since)}}, and[1])
	})

	t.Run("SearchEscapesRegex", func(t *testing.T) {
		got := buildFilter([]store.Filter{store.Search("title", "a.b")})
		assert.Equal(t, bson.M{"title": bson.M{"$regex": `a\.b`, "$options": "i"}}, got)
	})

	t.Run("NullChecks", func(t *testing.T) {
		assert.Equal(t, bson.M{"deletedAt": bson.M{"$eq": nil}}, buildFilter([]store.Filter{store.IsNull("deletedAt")}))
		assert.Equal(t, bson.M{"deletedAt": bson.M{"$ne": nil}}, buildFilter([]store.Filter{store.IsNotNull("deletedAt")}))
	})
}

func TestBSONRoundTrip(t *testing.T) {
	in := store.Document{
		"roomIds":   []any{"r1", "r2"},
		"startDate": "2025-01-10T00:00:00Z",
		"title":     "not-a-date",
		"capacity":  2.0,
		"nested":    map[string]any{"paidDate": "2025-02-01T10:00:00Z"},
	}

	m := toBSON(in)
	assert.IsType(t, primitive.DateTime(0), m["startDate"])
	assert.Equal(t, "not-a-date", m["title"])
	assert.IsType(t, bson.A{}, m["roomIds"])

	m[fieldID] = "doc-1"
	m["count"] = int32(4)
	out := fromBSON(m)

	assert.Equal(t, "doc-1", out.ID())
	assert.Equal(t, "2025-01-10T00:00:00Z", out["startDate"])
	assert.Equal(t, []any{"r1", "r2"}, out["roomIds"])
	assert.Equal(t, 4.0, out["count"])
	assert.Equal(t, "2025-02-01T10:00:00Z", out["nested"].(map[string]any)["paidDate"])
}
