// Package baas talks to the hosted backend's REST API: documents, storage,
// functions and account sessions.
package baas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"dormdesk/internal/config"
	"dormdesk/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	headerProject   = "X-Appwrite-Project"
	headerKey       = "X-Appwrite-Key"
	headerRequestID = "X-Request-Id"
)

// Client is bound to one project and database.
type Client struct {
	endpoint   string
	projectID  string
	apiKey     string
	databaseID string
	httpClient *http.Client
	logger     *zerolog.Logger
}

// APIError is the platform's error body together with the HTTP status.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("baas http %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("baas http %d: %s", e.Status, e.Message)
}

// Unwrap maps HTTP statuses onto the store sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusConflict:
		return store.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return store.ErrUnauthorized
	}
	return nil
}

func NewClient(cfg config.BaaSConfig, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		projectID:  cfg.ProjectID,
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) documentsURL(collection string) string {
	return fmt.Sprintf("%s/databases/%s/collections/%s/documents",
		c.endpoint, url.PathEscape(c.databaseID), url.PathEscape(collection))
}

func (c *Client) List(ctx context.Context, collection string, q store.Query) (*store.DocumentList, error) {
	params, err := encodeQueries(q)
	if err != nil {
		return nil, err
	}

	endpoint := c.documentsURL(collection)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var resp store.DocumentList
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if resp.Documents == nil {
		resp.Documents = []store.Document{}
	}
	return &resp, nil
}

func (c *Client) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var doc store.Document
	if err := c.doGet(ctx, c.documentsURL(collection)+"/"+url.PathEscape(id), &doc); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (c *Client) Create(ctx context.Context, collection, id string, data store.Document) (store.Document, error) {
	if id == "" {
		id = store.UniqueID()
	}
	body := map[string]any{
		"documentId": id,
		"data":       store.Payload(data),
	}

	var doc store.Document
	if err := c.doJSON(ctx, http.MethodPost, c.documentsURL(collection), body, &doc, true); err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}
	return doc, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, data store.Document) (store.Document, error) {
	body := map[string]any{"data": store.Payload(data)}

	var doc store.Document
	endpoint := c.documentsURL(collection) + "/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodPatch, endpoint, body, &doc, true); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	endpoint := c.documentsURL(collection) + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req, true)
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (c *Client) CreateFile(ctx context.Context, bucket, name, contentType string, r io.Reader) (*store.File, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fileID := store.UniqueID()
	if err := mw.WriteField("fileId", fileID); err != nil {
		return nil, err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/storage/buckets/%s/files", c.endpoint, url.PathEscape(bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.addHeaders(req, true)

	var f store.File
	if err := c.do(req, &f); err != nil {
		return nil, fmt.Errorf("upload %s to %s: %w", name, bucket, err)
	}
	return &f, nil
}

// PreviewURL is the public preview link of a stored file.
func (c *Client) PreviewURL(bucket, fileID string) string {
	return fmt.Sprintf("%s/storage/buckets/%s/files/%s/preview?project=%s",
		c.endpoint, url.PathEscape(bucket), url.PathEscape(fileID), url.QueryEscape(c.projectID))
}

// Execute runs a function synchronously. The payload travels as a JSON
// document encoded inside the string "body" field.
func (c *Client) Execute(ctx context.Context, functionID string, payload any) (*store.Execution, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode function payload: %w", err)
	}
	body := map[string]any{
		"body":  string(raw),
		"async": false,
	}

	endpoint := fmt.Sprintf("%s/functions/%s/executions", c.endpoint, url.PathEscape(functionID))
	var exec store.Execution
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &exec, true); err != nil {
		return nil, fmt.Errorf("execute function %s: %w", functionID, err)
	}
	return &exec, nil
}

// CreateSession exchanges an email/password pair for an account session.
// Account endpoints act as the end user, so the server key is not sent.
func (c *Client) CreateSession(ctx context.Context, email, password string) (*store.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var sess store.Session
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint+"/account/sessions/email", body, &sess, false); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

func (c *Client) DeleteSession(ctx context.Context, userID, sessionID string) error {
	endpoint := fmt.Sprintf("%s/users/%s/sessions/%s", c.endpoint, url.PathEscape(userID), url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req, true)
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ping checks that the platform answers with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	return c.doGet(ctx, c.endpoint+"/health", nil)
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req, true)
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any, withKey bool) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req, withKey)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("baas request failed")
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("dur", time.Since(start)).
		Str("request_id", req.Header.Get(headerRequestID)).
		Msg("baas request")

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) addHeaders(req *http.Request, withKey bool) {
	req.Header.Set(headerProject, c.projectID)
	req.Header.Set(headerRequestID, uuid.NewString())
	if withKey && c.apiKey != "" {
		req.Header.Set(headerKey, c.apiKey)
	}
}
