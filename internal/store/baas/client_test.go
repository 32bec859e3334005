package baas

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dormdesk/internal/config"
	"dormdesk/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.BaaSConfig{
		Endpoint:   srv.URL + "/v1",
		ProjectID:  "housing",
		APIKey:     "server-key",
		DatabaseID: "main",
		Timeout:    2 * time.Second,
	}, nil)
}

func TestClient_List(t *testing.T) {
	var gotQueries []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/databases/main/collections/contracts/documents", r.URL.Path)
		assert.Equal(t, "housing", r.Header.Get("X-Appwrite-Project"))
		assert.Equal(t, "server-key", r.Header.Get("X-Appwrite-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		gotQueries = r.URL.Query()["queries[]"]

		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"documents": []map[string]any{
				{"$id": "c1", "status": "active", "roomIds": []string{"r1"}},
			},
		})
	})

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	q := store.NewQuery(
		store.Equal("status", "active"),
		store.GreaterThanEqual("$createdAt", since),
	).OrderDesc("$createdAt").Page(25, 50)

	list, err := client.List(context.Background(), "contracts", q)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, "c1", list.Documents[0].ID())

	require.Len(t, gotQueries, 5)
	assert.JSONEq(t, `{"method":"equal","attribute":"status","values":["active"]}`, gotQueries[0])
	assert.JSONEq(t, `{"method":"greaterThanEqual","attribute":"$createdAt","values":["2025-01-01T00:00:00Z"]}`, gotQueries[1])
	assert.JSONEq(t, `{"method":"orderDesc","attribute":"$createdAt"}`, gotQueries[2])
	assert.JSONEq(t, `{"method":"limit","values":[25]}`, gotQueries[3])
	assert.JSONEq(t, `{"method":"offset","values":[50]}`, gotQueries[4])
}

func TestClient_CreateStripsMetadata(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body struct {
			DocumentID string         `json:"documentId"`
			Data       map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "room-1", body.DocumentID)
		assert.NotContains(t, body.Data, "$id")
		assert.Equal(t, "101", body.Data["roomNumber"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"$id": body.DocumentID, "roomNumber": "101"})
	})

	doc, err := client.Create(context.Background(), "rooms", "room-1", store.Document{"$id": "x", "roomNumber": "101"})
	require.NoError(t, err)
	assert.Equal(t, "room-1", doc.ID())
}

func TestClient_UpdateAndDelete(t *testing.T) {
	var methods []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "/v1/databases/main/collections/rooms/documents/room-1", r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"$id": "room-1", "capacity": 3})
	})

	doc, err := client.Update(context.Background(), "rooms", "room-1", store.Document{"capacity": 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, doc["capacity"])

	require.NoError(t, client.Delete(context.Background(), "rooms", "room-1"))
	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, methods)
}

func TestClient_ErrorMapping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/missing"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Document not found","code":404,"type":"document_not_found"}`))
		case strings.HasSuffix(r.URL.Path, "/boom"):
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("upstream exploded"))
		default:
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"exists","code":409,"type":"document_already_exists"}`))
		}
	})

	_, err := client.Get(context.Background(), "rooms", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "document_not_found", apiErr.Type)

	_, err = client.Get(context.Background(), "rooms", "boom")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream exploded", apiErr.Message)
	assert.False(t, errors.Is(err, store.ErrNotFound))

	_, err = client.Create(context.Background(), "rooms", "dup", store.Document{})
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestClient_CreateFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/storage/buckets/compliance/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.NotEmpty(t, r.FormValue("fileId"))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "tap.jpg", header.Filename)
		assert.Equal(t, "image-bytes", string(data))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"$id": r.FormValue("fileId"), "bucketId": "compliance", "name": header.Filename, "mimeType": "image/jpeg", "sizeOriginal": len(data),
		})
	})

	f, err := client.CreateFile(context.Background(), "compliance", "tap.jpg", "image/jpeg", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, int64(11), f.Size)
	assert.True(t, strings.HasSuffix(client.PreviewURL("compliance", f.ID), "/v1/storage/buckets/compliance/files/"+f.ID+"/preview?project=housing"))
}

func TestClient_Execute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/functions/create-user/executions", r.URL.Path)

		var body struct {
			Body  string `json:"body"`
			Async bool   `json:"async"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.Async)

		var inner map[string]any
		require.NoError(t, json.Unmarshal([]byte(body.Body), &inner))
		assert.Equal(t, "a@b.test", inner["email"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"$id":                "exec-1",
			"status":             "completed",
			"responseStatusCode": 200,
			"responseBody":       `{"success":true,"message":"ok","userId":"auth-1"}`,
		})
	})

	exec, err := client.Execute(context.Background(), "create-user", map[string]string{"email": "a@b.test"})
	require.NoError(t, err)
	assert.Equal(t, "completed", exec.Status)
	assert.Contains(t, exec.Body, "auth-1")
}

func TestClient_CreateSessionOmitsServerKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/account/sessions/email", r.URL.Path)
		assert.Empty(t, r.Header.Get("X-Appwrite-Key"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"$id": "sess-1", "userId": "auth-1", "expire": "2030-01-01T00:00:00.000+00:00",
		})
	})

	sess, err := client.CreateSession(context.Background(), "a@b.test", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "auth-1", sess.UserID)
	assert.Equal(t, 2030, sess.Expire.Year())
}
