// Package sqlite keeps documents and files in a single local SQLite file.
// Queries are evaluated in-process, which is fine for development-sized data.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dormdesk/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	db        *sql.DB
	publicURL string
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewDB(path, publicURL string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("sqlite store initialized")
	return &DB{db: db, publicURL: publicURL, logger: logger, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            collection TEXT NOT NULL,
            id TEXT NOT NULL,
            data TEXT NOT NULL,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            seq INTEGER NOT NULL,
            PRIMARY KEY (collection, id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents(collection, seq)`,
		`CREATE TABLE IF NOT EXISTS files (
            bucket TEXT NOT NULL,
            id TEXT NOT NULL,
            name TEXT NOT NULL,
            mime_type TEXT NOT NULL,
            size INTEGER NOT NULL,
            content BLOB NOT NULL,
            created_at TEXT NOT NULL,
            PRIMARY KEY (bucket, id)
        )`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) PingContext(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) List(ctx context.Context, collection string, q store.Query) (*store.DocumentList, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	return q.Apply(docs), nil
}

func (d *DB) Get(ctx context.Context, collection, id string) (store.Document, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`, collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (d *DB) Create(ctx context.Context, collection, id string, data store.Document) (store.Document, error) {
	if id == "" {
		id = store.UniqueID()
	}

	payload, err := json.Marshal(store.Payload(data))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	now := store.FormatTime(d.now())

	_, err = d.db.ExecContext(ctx, `
        INSERT INTO documents (collection, id, data, created_at, updated_at, seq)
        VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents WHERE collection = ?))`,
		collection, id, string(payload), now, now, collection)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrConflict)
		}
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	return d.Get(ctx, collection, id)
}

func (d *DB) Update(ctx context.Context, collection, id string, data store.Document) (store.Document, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	merged := store.Document{}
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	for k, v := range store.Payload(data) {
		merged[k] = v
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(payload), store.FormatTime(d.now()), collection, id); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return d.Get(ctx, collection, id)
}

func (d *DB) Delete(ctx context.Context, collection, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (store.Document, error) {
	var id, data, createdAt, updatedAt string
	if err := row.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc := store.Document{}
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc[store.FieldID] = id
	doc[store.FieldCreatedAt] = createdAt
	doc[store.FieldUpdatedAt] = updatedAt
	return doc, nil
}

func (d *DB) CreateFile(ctx context.Context, bucket, name, contentType string, r io.Reader) (*store.File, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	f := store.File{ID: store.UniqueID(), Bucket: bucket, Name: name, MimeType: contentType, Size: int64(len(content))}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO files (bucket, id, name, mime_type, size, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Bucket, f.ID, f.Name, f.MimeType, f.Size, content, store.FormatTime(d.now()))
	if err != nil {
		return nil, fmt.Errorf("store file %s: %w", name, err)
	}
	return &f, nil
}

func (d *DB) PreviewURL(bucket, fileID string) string {
	return store.LocalFileURL(d.publicURL, bucket, fileID)
}

func (d *DB) OpenFile(ctx context.Context, bucket, fileID string) (*store.File, io.ReadCloser, error) {
	f := store.File{Bucket: bucket, ID: fileID}
	var content []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT name, mime_type, size, content FROM files WHERE bucket = ? AND id = ?`, bucket, fileID).
		Scan(&f.Name, &f.MimeType, &f.Size, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("file %s/%s: %w", bucket, fileID, store.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open file %s/%s: %w", bucket, fileID, err)
	}
	return &f, io.NopCloser(bytes.NewReader(content)), nil
}
