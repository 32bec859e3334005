package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dormdesk/internal/config"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	testCols    = config.Defaults().Collections
	testBuckets = config.Defaults().Buckets
	testNow     = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	admin       = models.Actor{ID: "admin-1", Name: "Dana Admin"}
	errBoom     = errors.New("boom")
)

func newTestStore() *store.Memory {
	m := store.NewMemory("http://localhost:8080")
	m.SetClock(func() time.Time { return testNow })
	return m
}

func fixedNow() time.Time { return testNow }

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 1, day, hour, minute, 0, 0, time.UTC)
}

func bufferLogger() (*zerolog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	return &l, &buf
}

// countingDocs counts calls that reach the wrapped store and can fail writes on demand.
type countingDocs struct {
	store.Documents
	calls      atomic.Int64
	failWrites bool
}

func (c *countingDocs) List(ctx context.Context, collection string, q store.Query) (*store.DocumentList, error) {
	c.calls.Add(1)
	return c.Documents.List(ctx, collection, q)
}

func (c *countingDocs) Get(ctx context.Context, collection, id string) (store.Document, error) {
	c.calls.Add(1)
	return c.Documents.Get(ctx, collection, id)
}

func (c *countingDocs) Create(ctx context.Context, collection, id string, data store.Document) (store.Document, error) {
	c.calls.Add(1)
	if c.failWrites {
		return nil, errBoom
	}
	return c.Documents.Create(ctx, collection, id, data)
}

func (c *countingDocs) Update(ctx context.Context, collection, id string, data store.Document) (store.Document, error) {
	c.calls.Add(1)
	if c.failWrites {
		return nil, errBoom
	}
	return c.Documents.Update(ctx, collection, id, data)
}

func (c *countingDocs) Delete(ctx context.Context, collection, id string) error {
	c.calls.Add(1)
	return c.Documents.Delete(ctx, collection, id)
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   []string
	payloads []interface{}
}

func (p *recordingPublisher) PublishJSON(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.payloads = append(p.payloads, payload)
	return nil
}

// Last returns the most recent payload published as eventType.
func (p *recordingPublisher) Last(eventType string) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i] == eventType {
			return p.payloads[i], true
		}
	}
	return nil, false
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func requireFieldErrors(t *testing.T, err error, fields ...string) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, f := range fields {
		require.Contains(t, verr.Fields, f)
	}
	return verr
}
