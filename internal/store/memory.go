package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Memory is an in-process driver. Documents keep insertion order.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]Document
	files       map[string]memoryFile
	publicURL   string
	now         func() time.Time
}

type memoryFile struct {
	meta File
	data []byte
}

func NewMemory(publicURL string) *Memory {
	return &Memory{
		collections: make(map[string][]Document),
		files:       make(map[string]memoryFile),
		publicURL:   publicURL,
		now:         time.Now,
	}
}

func (m *Memory) List(ctx context.Context, collection string, q Query) (*DocumentList, error) {
	m.mu.RLock()
	docs := make([]Document, 0, len(m.collections[collection]))
	for _, d := range m.collections[collection] {
		docs = append(docs, Clone(d))
	}
	m.mu.RUnlock()

	return q.Apply(docs), nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexOf(collection, id); i >= 0 {
		return Clone(m.collections[collection][i]), nil
	}
	return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
}

func (m *Memory) Create(ctx context.Context, collection, id string, data Document) (Document, error) {
	if id == "" {
		id = UniqueID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(collection, id) >= 0 {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
	}

	now := FormatTime(m.now())
	doc := Clone(Payload(data))
	doc[FieldID] = id
	doc[FieldCreatedAt] = now
	doc[FieldUpdatedAt] = now
	m.collections[collection] = append(m.collections[collection], doc)

	return Clone(doc), nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, data Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(collection, id)
	if i < 0 {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}

	existing := m.collections[collection][i]
	doc := Clone(existing)
	for k, v := range Clone(Payload(data)) {
		doc[k] = v
	}
	doc[FieldUpdatedAt] = FormatTime(m.now())
	m.collections[collection][i] = doc

	return Clone(doc), nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(collection, id)
	if i < 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	docs := m.collections[collection]
	m.collections[collection] = append(docs[:i:i], docs[i+1:]...)
	return nil
}

// Seed inserts a document verbatim, metadata included. Intended for fixtures.
func (m *Memory) Seed(collection string, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc = Clone(doc)
	if doc.ID() == "" {
		doc[FieldID] = UniqueID()
	}
	if _, ok := doc[FieldCreatedAt]; !ok {
		doc[FieldCreatedAt] = FormatTime(m.now())
	}
	m.collections[collection] = append(m.collections[collection], doc)
}

func (m *Memory) indexOf(collection, id string) int {
	for i, d := range m.collections[collection] {
		if d.ID() == id {
			return i
		}
	}
	return -1
}

func (m *Memory) CreateFile(ctx context.Context, bucket, name, contentType string, r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	f := File{ID: UniqueID(), Bucket: bucket, Name: name, MimeType: contentType, Size: int64(len(data))}

	m.mu.Lock()
	m.files[bucket+"/"+f.ID] = memoryFile{meta: f, data: data}
	m.mu.Unlock()

	return &f, nil
}

func (m *Memory) PreviewURL(bucket, fileID string) string {
	return LocalFileURL(m.publicURL, bucket, fileID)
}

func (m *Memory) OpenFile(ctx context.Context, bucket, fileID string) (*File, io.ReadCloser, error) {
	m.mu.RLock()
	f, ok := m.files[bucket+"/"+fileID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("file %s/%s: %w", bucket, fileID, ErrNotFound)
	}
	meta := f.meta
	return &meta, io.NopCloser(bytes.NewReader(f.data)), nil
}

// LocalFileURL is the preview link for files served by this API rather than the hosted platform.
func LocalFileURL(publicURL, bucket, fileID string) string {
	return fmt.Sprintf("%s/api/v1/files/%s/%s", publicURL, bucket, fileID)
}

// SetClock replaces the timestamp source used for metadata.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}
