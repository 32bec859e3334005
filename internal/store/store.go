// Package store defines the generic document, file, function and account
// contracts the console talks to, independent of the hosting backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata attributes maintained by every driver.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrConflict     = errors.New("document already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnsupported  = errors.New("operation not supported by this driver")
)

// Document is a flat JSON object as stored in a collection.
type Document map[string]any

func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

func (d Document) CreatedAt() time.Time {
	return d.Time(FieldCreatedAt)
}

// Time parses an ISO-8601 attribute, returning the zero time when absent or malformed.
func (d Document) Time(attr string) time.Time {
	switch v := d[attr].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}

// DocumentList is one page of a listing together with the unpaged total.
type DocumentList struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

// Documents is the generic document verb set, bound to one database.
type Documents interface {
	List(ctx context.Context, collection string, q Query) (*DocumentList, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection, id string, data Document) (Document, error)
	// Update overwrites the writable attributes of an existing document.
	Update(ctx context.Context, collection, id string, data Document) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}

type File struct {
	ID       string `json:"$id"`
	Bucket   string `json:"bucketId"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"sizeOriginal"`
}

type Files interface {
	CreateFile(ctx context.Context, bucket, name, contentType string, r io.Reader) (*File, error)
	PreviewURL(bucket, fileID string) string
}

// FileReader is implemented by drivers that keep file contents locally.
type FileReader interface {
	OpenFile(ctx context.Context, bucket, fileID string) (*File, io.ReadCloser, error)
}

// Execution is the synchronous result of a serverless function run.
type Execution struct {
	ID         string `json:"$id"`
	Status     string `json:"status"`
	StatusCode int    `json:"responseStatusCode"`
	Body       string `json:"responseBody"`
}

type Functions interface {
	Execute(ctx context.Context, functionID string, payload any) (*Execution, error)
}

// Session is an authenticated identity session issued by the account provider.
type Session struct {
	ID     string    `json:"$id"`
	UserID string    `json:"userId"`
	Expire time.Time `json:"expire"`
}

type Accounts interface {
	CreateSession(ctx context.Context, email, password string) (*Session, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// UniqueID returns a fresh document ID that is valid for every driver.
func UniqueID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Encode flattens a typed value into a Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode fills out from a Document.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID(), err)
	}
	return nil
}

// DecodeAll decodes every document into a slice of T.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := Decode(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Payload strips metadata attributes, leaving only the writable data.
func Payload(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if strings.HasPrefix(k, "$") {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone deep-copies a document through its JSON form so drivers never share maps with callers.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out, err := Encode(doc)
	if err != nil {
		return Document{}
	}
	return out
}

// FormatTime renders a timestamp the way documents store it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

const pageSize = 100

// ListAll pages through a collection and returns every matching document.
func ListAll(ctx context.Context, docs Documents, collection string, q Query) ([]Document, error) {
	q.Limit = pageSize
	q.Offset = 0

	var out []Document
	for {
		page, err := docs.List(ctx, collection, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Documents...)
		if len(page.Documents) < pageSize || len(out) >= page.Total {
			return out, nil
		}
		q.Offset += pageSize
	}
}
