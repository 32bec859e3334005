package mongodb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"dormdesk/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const metaContentType = "contentType"

// bucket opens the GridFS bucket backing a storage bucket and applies the
// context deadline, since GridFS calls take no context.
func (s *Store) bucket(ctx context.Context, name string) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %s: %w", name, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = b.SetReadDeadline(dl)
		_ = b.SetWriteDeadline(dl)
	}
	return b, nil
}

func (s *Store) CreateFile(ctx context.Context, bucket, name, contentType string, r io.Reader) (*store.File, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b, err := s.bucket(ctx, bucket)
	if err != nil {
		return nil, err
	}

	counter := &countingReader{r: r}
	id := store.UniqueID()
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: metaContentType, Value: contentType}})
	if err := b.UploadFromStreamWithID(id, name, counter, opts); err != nil {
		return nil, fmt.Errorf("store file %s: %w", name, err)
	}
	return &store.File{ID: id, Bucket: bucket, Name: name, MimeType: contentType, Size: counter.n}, nil
}

func (s *Store) PreviewURL(bucket, fileID string) string {
	return store.LocalFileURL(s.publicURL, bucket, fileID)
}

func (s *Store) OpenFile(ctx context.Context, bucket, fileID string) (*store.File, io.ReadCloser, error) {
	b, err := s.bucket(ctx, bucket)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if _, err := b.DownloadToStream(fileID, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil, fmt.Errorf("file %s/%s: %w", bucket, fileID, store.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("open file %s/%s: %w", bucket, fileID, err)
	}

	f := &store.File{ID: fileID, Bucket: bucket, Size: int64(buf.Len())}
	cursor, err := b.FindContext(ctx, bson.M{"_id": fileID})
	if err == nil {
		var files []gridfs.File
		if cursor.All(ctx, &files) == nil && len(files) > 0 {
			f.Name = files[0].Name
			if v, ok := files[0].Metadata.Lookup(metaContentType).StringValueOK(); ok {
				f.MimeType = v
			}
		}
	}
	return f, io.NopCloser(&buf), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
